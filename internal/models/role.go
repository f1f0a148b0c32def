package models

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

// Role is a named job category. Default roles are seeded at startup,
// the rest are created on demand when referenced by name.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Value     string    `gorm:"uniqueIndex;size:100;not null" json:"value"`
	IsDefault bool      `gorm:"default:false" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

func (Role) TableName() string { return "roles" }

// Skill is a named capability, either general (RoleID nil) or scoped to a role.
// Names are unique per scope, case-insensitively, through ScopeKey.
type Skill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	RoleID    *uint     `gorm:"index" json:"role_id"`
	Role      *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	ScopeKey  string    `gorm:"uniqueIndex;size:150;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Skill) TableName() string { return "skills" }

func (s *Skill) BeforeSave(tx *gorm.DB) error {
	s.Name = strings.TrimSpace(s.Name)
	s.ScopeKey = SkillScopeKey(s.RoleID, s.Name)
	return nil
}

// SkillScopeKey is the unique key of a skill name within a role scope.
func SkillScopeKey(roleID *uint, name string) string {
	scope := "0"
	if roleID != nil {
		scope = strconv.FormatUint(uint64(*roleID), 10)
	}
	return scope + ":" + strings.ToLower(strings.TrimSpace(name))
}

// CompatibleWith reports whether the skill may be attached to a profile with the given role.
// General skills fit every role, and an unset role accepts everything.
func (s *Skill) CompatibleWith(roleID *uint) bool {
	if roleID == nil || s.RoleID == nil {
		return true
	}
	return *s.RoleID == *roleID
}

// DefaultRole is an entry of the seeded role table.
type DefaultRole struct {
	Value string
	Name  string
}

var defaultRoles = [...]DefaultRole{
	{"software_engineer", "Software Engineer"},
	{"frontend_engineer", "Frontend Engineer"},
	{"backend_engineer", "Backend Engineer"},
	{"fullstack_engineer", "Fullstack Engineer"},
	{"designer", "Designer"},
	{"product_manager", "Product Manager"},
	{"project_manager", "Project Manager"},
	{"qa_engineer", "QA Engineer"},
	{"devops_engineer", "DevOps Engineer"},
	{"business_analyst", "Business Analyst"},
	{"other", "Other"},
}

// DefaultRoles returns a copy of the seeded role table.
func DefaultRoles() []DefaultRole {
	out := make([]DefaultRole, len(defaultRoles))
	copy(out, defaultRoles[:])
	return out
}

// SeedDefaultRoles inserts missing default roles and returns how many were created.
func SeedDefaultRoles(db *gorm.DB) (int, error) {
	created := 0
	for _, dr := range defaultRoles {
		role := Role{Name: dr.Name, Value: dr.Value, IsDefault: true}
		result := db.Where(Role{Value: dr.Value}).Attrs(role).FirstOrCreate(&role)
		if result.Error != nil {
			return created, result.Error
		}
		if result.RowsAffected > 0 {
			created++
		}
	}
	return created, nil
}

// RoleValue turns a display name into the slug stored in Role.Value.
func RoleValue(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
