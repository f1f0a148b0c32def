package models

import "time"

const (
	MembershipPending  = "pending"
	MembershipApproved = "approved"
	MembershipRejected = "rejected"
)

func IsValidMembershipStatus(status string) bool {
	return status == MembershipPending || status == MembershipApproved || status == MembershipRejected
}

// IsDecision reports whether status is an owner decision.
func IsDecision(status string) bool {
	return status == MembershipApproved || status == MembershipRejected
}

// ProjectMembership is a join request for one role of a project.
// A user holds at most one membership per (project, role).
type ProjectMembership struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;uniqueIndex:idx_membership_user_project_role" json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	ProjectID     uint         `gorm:"not null;index;uniqueIndex:idx_membership_user_project_role" json:"project_id"`
	Project       *Project     `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ProjectRoleID uint         `gorm:"not null;uniqueIndex:idx_membership_user_project_role" json:"project_role_id"`
	ProjectRole   *ProjectRole `gorm:"foreignKey:ProjectRoleID;constraint:OnDelete:CASCADE" json:"role,omitempty"`
	Status        string       `gorm:"size:20;not null;default:pending;index" json:"status"`
	JoinedAt      time.Time    `gorm:"autoCreateTime;index" json:"joined_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (ProjectMembership) TableName() string { return "project_memberships" }

// IsTerminal reports whether the membership has already been decided.
func (m *ProjectMembership) IsTerminal() bool {
	return IsDecision(m.Status)
}
