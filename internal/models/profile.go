package models

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	ExperienceJunior    = "junior"
	ExperienceMidLevel  = "mid_level"
	ExperienceSenior    = "senior"
	ExperienceLead      = "lead"
	ExperiencePrincipal = "principal"
)

var experienceLevels = map[string]string{
	ExperienceJunior:    "Junior (0-2 years)",
	ExperienceMidLevel:  "Mid-Level (2-5 years)",
	ExperienceSenior:    "Senior (5-8 years)",
	ExperienceLead:      "Lead (8+ years)",
	ExperiencePrincipal: "Principal/Architect",
}

func IsValidExperienceLevel(level string) bool {
	_, ok := experienceLevels[level]
	return ok
}

// Profile is the user-editable part of an account, one per user.
type Profile struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UserID          uint        `gorm:"uniqueIndex;not null" json:"user_id"`
	User            *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	FirstName       string      `gorm:"size:100" json:"first_name"`
	LastName        string      `gorm:"size:100" json:"last_name"`
	RoleID          *uint       `gorm:"index" json:"role_id"`
	Role            *Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:SET NULL" json:"role,omitempty"`
	ExperienceLevel string      `gorm:"size:20;default:junior" json:"experience_level"`
	PortfolioLink   string      `gorm:"size:500" json:"portfolio_link"`
	GithubLink      string      `gorm:"size:500" json:"github_link"`
	LinkedinLink    string      `gorm:"size:500" json:"linkedin_link"`
	Bio             string      `gorm:"type:text" json:"bio"`
	Skills          []UserSkill `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"skills"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// IsComplete requires the core fields and at least one skill.
func (p *Profile) IsComplete() bool {
	return strings.TrimSpace(p.FirstName) != "" &&
		strings.TrimSpace(p.LastName) != "" &&
		p.RoleID != nil &&
		p.ExperienceLevel != "" &&
		strings.TrimSpace(p.Bio) != "" &&
		len(p.Skills) > 0
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type alias Profile
	return json.Marshal(struct {
		alias
		FullName   string `json:"full_name"`
		IsComplete bool   `json:"is_complete"`
	}{alias(p), p.FullName(), p.IsComplete()})
}

// SplitFullName splits "Ada King Lovelace" into ("Ada", "King Lovelace").
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// UserSkill attaches a skill to a profile.
type UserSkill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProfileID uint      `gorm:"uniqueIndex:idx_profile_skill;not null" json:"-"`
	SkillID   uint      `gorm:"uniqueIndex:idx_profile_skill;not null" json:"skill_id"`
	Skill     *Skill    `gorm:"foreignKey:SkillID;constraint:OnDelete:CASCADE" json:"skill,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserSkill) TableName() string { return "user_skills" }
