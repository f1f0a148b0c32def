package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	ProjectStatusPending    = "pending"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusOnHold     = "on_hold"
	ProjectStatusCancelled  = "cancelled"
)

var projectStatuses = []string{
	ProjectStatusPending,
	ProjectStatusInProgress,
	ProjectStatusCompleted,
	ProjectStatusOnHold,
	ProjectStatusCancelled,
}

func ProjectStatuses() []string {
	return append([]string(nil), projectStatuses...)
}

func IsValidProjectStatus(status string) bool {
	for _, s := range projectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Project is owned by one user and lists the roles it needs.
type Project struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Title       string              `gorm:"size:200;not null" json:"title"`
	Description string              `gorm:"type:text" json:"description"`
	Status      string              `gorm:"size:20;not null;default:pending;index" json:"status"`
	OwnerID     uint                `gorm:"index;not null" json:"owner_id"`
	Owner       *User               `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Roles       []ProjectRole       `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"required_roles"`
	Memberships []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"team_members,omitempty"`
	CreatedAt   time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// ProjectRole is one role requirement: a catalog role or a custom name, never both.
type ProjectRole struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	ProjectID      uint               `gorm:"not null;uniqueIndex:idx_project_role;uniqueIndex:idx_project_custom_role" json:"project_id"`
	RoleID         *uint              `gorm:"uniqueIndex:idx_project_role" json:"role_id"`
	Role           *Role              `gorm:"foreignKey:RoleID;constraint:OnDelete:RESTRICT" json:"role,omitempty"`
	CustomRoleName *string            `gorm:"size:100;check:chk_project_role_kind,(role_id IS NULL) <> (custom_role_name IS NULL)" json:"custom_role_name"`
	CustomRoleKey  *string            `gorm:"size:100;uniqueIndex:idx_project_custom_role" json:"-"`
	NumberRequired int                `gorm:"not null;default:1" json:"number_required"`
	Skills         []ProjectRoleSkill `gorm:"foreignKey:ProjectRoleID;constraint:OnDelete:CASCADE" json:"required_skills"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (ProjectRole) TableName() string { return "project_roles" }

func (r *ProjectRole) BeforeSave(tx *gorm.DB) error {
	r.CustomRoleName, r.CustomRoleKey = customNameKey(r.CustomRoleName)
	return nil
}

// customNameKey trims a custom name and derives its case-insensitive unique key.
func customNameKey(name *string) (*string, *string) {
	if name == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*name)
	key := strings.ToLower(trimmed)
	return &trimmed, &key
}

// DisplayName is the catalog role name, or the custom name when set.
func (r *ProjectRole) DisplayName() string {
	if r.Role != nil {
		return r.Role.Name
	}
	if r.CustomRoleName != nil {
		return *r.CustomRoleName
	}
	return ""
}

func (r ProjectRole) MarshalJSON() ([]byte, error) {
	type alias ProjectRole
	return json.Marshal(struct {
		alias
		DisplayName string `json:"display_name"`
	}{alias(r), r.DisplayName()})
}

// ProjectRoleSkill is a skill requirement: a catalog skill or a custom name, never both.
type ProjectRoleSkill struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProjectRoleID   uint      `gorm:"not null;uniqueIndex:idx_role_skill;uniqueIndex:idx_role_custom_skill" json:"project_role_id"`
	SkillID         *uint     `gorm:"uniqueIndex:idx_role_skill" json:"skill_id"`
	Skill           *Skill    `gorm:"foreignKey:SkillID;constraint:OnDelete:RESTRICT" json:"skill,omitempty"`
	CustomSkillName *string   `gorm:"size:100;check:chk_project_role_skill_kind,(skill_id IS NULL) <> (custom_skill_name IS NULL)" json:"custom_skill_name"`
	CustomSkillKey  *string   `gorm:"size:100;uniqueIndex:idx_role_custom_skill" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ProjectRoleSkill) TableName() string { return "project_role_skills" }

func (s *ProjectRoleSkill) BeforeSave(tx *gorm.DB) error {
	s.CustomSkillName, s.CustomSkillKey = customNameKey(s.CustomSkillName)
	return nil
}

func (s *ProjectRoleSkill) Name() string {
	if s.Skill != nil {
		return s.Skill.Name
	}
	if s.CustomSkillName != nil {
		return *s.CustomSkillName
	}
	return ""
}

func (s ProjectRoleSkill) MarshalJSON() ([]byte, error) {
	type alias ProjectRoleSkill
	return json.Marshal(struct {
		alias
		Name string `json:"name"`
	}{alias(s), s.Name()})
}
