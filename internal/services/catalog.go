package services

import (
	"fmt"
	"strings"

	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// CatalogService owns roles and skills and is the only place that
// resolves them by id or creates them by name.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

type SkillListRequest struct {
	RoleID *uint  `form:"role_id"`
	Search string `form:"search"`
}

func (s *CatalogService) ListRoles() ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.Order("name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// ListSkills returns skills ordered by name. With a role filter the result
// holds the role's own skills plus the general ones.
func (s *CatalogService) ListSkills(req *SkillListRequest) ([]models.Skill, error) {
	query := s.db.Model(&models.Skill{}).Preload("Role")
	if req.RoleID != nil {
		query = query.Where("role_id = ? OR role_id IS NULL", *req.RoleID)
	}
	if strings.TrimSpace(req.Search) != "" {
		query = query.Where("LOWER(name) LIKE ? "+likeEscape, likeContains(req.Search))
	}

	var skills []models.Skill
	if err := query.Order("name ASC").Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

func (s *CatalogService) GetRole(tx *gorm.DB, id uint) (*models.Role, error) {
	var role models.Role
	if err := s.conn(tx).First(&role, id).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("role %d not found", id))
	}
	return &role, nil
}

func (s *CatalogService) GetSkill(tx *gorm.DB, id uint) (*models.Skill, error) {
	var skill models.Skill
	if err := s.conn(tx).First(&skill, id).Error; err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("skill %d not found", id))
	}
	return &skill, nil
}

// ResolveRole returns the role with the given id, or finds-or-creates one by name.
// Pass the surrounding transaction as tx, or nil to use the service connection.
func (s *CatalogService) ResolveRole(tx *gorm.DB, id *uint, name string) (*models.Role, error) {
	if id != nil {
		return s.GetRole(tx, *id)
	}

	name = strings.TrimSpace(name)
	value := models.RoleValue(name)
	if value == "" {
		return nil, response.NewFieldError("role_name", "role name must contain letters or digits")
	}

	db := s.conn(tx)
	var role models.Role
	err := db.Where("value = ?", value).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("lookup role %q: %w", name, err)
	}

	role = models.Role{Name: name, Value: value}
	// Savepoint keeps an outer transaction usable after a unique violation.
	err = db.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&role).Error
	})
	if err == nil {
		return &role, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("create role %q: %w", name, err)
	}

	// Lost the race to a concurrent insert.
	role = models.Role{}
	if err := db.Where("value = ? OR name = ?", value, name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("reload role %q: %w", name, err)
	}
	return &role, nil
}

// ResolveSkill returns the skill with the given id, or finds-or-creates one by name.
// A name is looked up in roleID's scope first and then among general skills;
// a new skill is created in roleID's scope (general when roleID is nil).
func (s *CatalogService) ResolveSkill(tx *gorm.DB, id *uint, name string, roleID *uint) (*models.Skill, error) {
	if id != nil {
		return s.GetSkill(tx, *id)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewFieldError("skill_name", "skill name cannot be empty")
	}

	db := s.conn(tx)
	keys := []string{models.SkillScopeKey(roleID, name)}
	if roleID != nil {
		keys = append(keys, models.SkillScopeKey(nil, name))
	}
	for _, key := range keys {
		var skill models.Skill
		err := db.Where("scope_key = ?", key).First(&skill).Error
		if err == nil {
			return &skill, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("lookup skill %q: %w", name, err)
		}
	}

	skill := models.Skill{Name: name, RoleID: roleID}
	err := db.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&skill).Error
	})
	if err == nil {
		return &skill, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("create skill %q: %w", name, err)
	}

	skill = models.Skill{}
	if err := db.Where("scope_key = ?", keys[0]).First(&skill).Error; err != nil {
		return nil, fmt.Errorf("reload skill %q: %w", name, err)
	}
	return &skill, nil
}

// SeedDefaultRoles inserts the built-in role table.
func (s *CatalogService) SeedDefaultRoles() (int, error) {
	return models.SeedDefaultRoles(s.db)
}

func (s *CatalogService) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
