package services

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type ProfileService struct {
	db      *gorm.DB
	catalog *CatalogService
}

func NewProfileService(db *gorm.DB, catalog *CatalogService) *ProfileService {
	return &ProfileService{db: db, catalog: catalog}
}

// UpdateProfileRequest is a patch: nil fields are left untouched.
// SkillIDs, when present, replaces the whole skill set.
type UpdateProfileRequest struct {
	FullName        *string `json:"full_name" binding:"omitempty,max=200"`
	FirstName       *string `json:"first_name" binding:"omitempty,max=100"`
	LastName        *string `json:"last_name" binding:"omitempty,max=100"`
	RoleID          *uint   `json:"role_id"`
	ExperienceLevel *string `json:"experience_level"`
	PortfolioLink   *string `json:"portfolio_link" binding:"omitempty,max=500"`
	GithubLink      *string `json:"github_link" binding:"omitempty,max=500"`
	LinkedinLink    *string `json:"linkedin_link" binding:"omitempty,max=500"`
	Bio             *string `json:"bio"`
	SkillIDs        *[]uint `json:"skill_ids"`
}

type AddSkillRequest struct {
	SkillID uint `json:"skill_id" binding:"required"`
}

// ensureProfile returns the user's profile, creating it from the account names when missing.
func ensureProfile(tx *gorm.DB, user *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := tx.Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	profile = models.Profile{
		UserID:          user.ID,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		ExperienceLevel: models.ExperienceJunior,
	}
	err = tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&profile).Error
	})
	if err == nil {
		return &profile, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	profile = models.Profile{}
	if err := tx.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileService) ensure(tx *gorm.DB, userID uint) (*models.Profile, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return ensureProfile(tx, &user)
}

func (s *ProfileService) load(tx *gorm.DB, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := tx.Preload("Role").
		Preload("Skills", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Skills.Skill").
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, notFoundOr(err, "profile not found")
	}
	return &profile, nil
}

// Get returns the caller's profile, creating it on first access.
func (s *ProfileService) Get(userID uint) (*models.Profile, error) {
	if _, err := s.ensure(s.db, userID); err != nil {
		return nil, err
	}
	return s.load(s.db, userID)
}

func (s *ProfileService) Update(userID uint, req *UpdateProfileRequest) (*models.Profile, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		profile, err := s.ensure(tx, userID)
		if err != nil {
			return err
		}

		updates, targetRole, err := s.profileUpdates(tx, profile, req)
		if err != nil {
			return err
		}

		if req.SkillIDs != nil {
			skillIDs, err := s.validateSkills(tx, *req.SkillIDs, targetRole)
			if err != nil {
				return err
			}
			if err := tx.Where("profile_id = ?", profile.ID).Delete(&models.UserSkill{}).Error; err != nil {
				return fmt.Errorf("clear profile skills: %w", err)
			}
			for _, id := range skillIDs {
				if err := tx.Create(&models.UserSkill{ProfileID: profile.ID, SkillID: id}).Error; err != nil {
					return fmt.Errorf("attach skill %d: %w", id, err)
				}
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(profile).Updates(updates).Error; err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(s.db, userID)
}

// profileUpdates validates the scalar fields of req and returns the column
// changes plus the role skills are checked against.
func (s *ProfileService) profileUpdates(tx *gorm.DB, profile *models.Profile, req *UpdateProfileRequest) (map[string]interface{}, *uint, error) {
	updates := map[string]interface{}{}
	fields := map[string]string{}
	targetRole := profile.RoleID

	if req.FullName != nil {
		first, last := models.SplitFullName(*req.FullName)
		updates["first_name"] = first
		updates["last_name"] = last
	}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}

	if req.RoleID != nil {
		if *req.RoleID == 0 {
			fields["role_id"] = "role cannot be empty"
		} else if _, err := s.catalog.GetRole(tx, *req.RoleID); err != nil {
			if response.StatusOf(err) != http.StatusNotFound {
				return nil, nil, err
			}
			fields["role_id"] = fmt.Sprintf("role %d does not exist", *req.RoleID)
		} else {
			updates["role_id"] = *req.RoleID
			targetRole = req.RoleID
		}
	}

	if req.ExperienceLevel != nil {
		if !models.IsValidExperienceLevel(*req.ExperienceLevel) {
			fields["experience_level"] = fmt.Sprintf("%q is not a valid experience level", *req.ExperienceLevel)
		} else {
			updates["experience_level"] = *req.ExperienceLevel
		}
	}

	links := []struct {
		field string
		value *string
	}{
		{"portfolio_link", req.PortfolioLink},
		{"github_link", req.GithubLink},
		{"linkedin_link", req.LinkedinLink},
	}
	for _, link := range links {
		if link.value == nil {
			continue
		}
		v := strings.TrimSpace(*link.value)
		if v != "" && !isHTTPURL(v) {
			fields[link.field] = "must be an http or https URL"
			continue
		}
		updates[link.field] = v
	}

	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}

	if len(fields) > 0 {
		return nil, nil, response.NewValidation(fields)
	}
	return updates, targetRole, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateSkills checks that every id exists and fits roleID, and returns the ids deduplicated.
func (s *ProfileService) validateSkills(tx *gorm.DB, ids []uint, roleID *uint) ([]uint, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return unique, nil
	}

	var skills []models.Skill
	if err := tx.Where("id IN ?", unique).Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	if len(skills) != len(unique) {
		found := make(map[uint]bool, len(skills))
		for _, sk := range skills {
			found[sk.ID] = true
		}
		var missing []string
		for _, id := range unique {
			if !found[id] {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, response.NewFieldError("skill_ids", "unknown skills: "+strings.Join(missing, ", "))
	}

	if err := checkCompatible(tx, skills, roleID); err != nil {
		return nil, err
	}
	return unique, nil
}

// checkCompatible rejects skills scoped to a role other than roleID.
// A nil roleID accepts every skill.
func checkCompatible(tx *gorm.DB, skills []models.Skill, roleID *uint) error {
	if roleID == nil {
		return nil
	}
	var bad []string
	for i := range skills {
		if !skills[i].CompatibleWith(roleID) {
			bad = append(bad, skills[i].Name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)

	roleName := fmt.Sprint(*roleID)
	var role models.Role
	if err := tx.Select("name").First(&role, *roleID).Error; err == nil {
		roleName = role.Name
	}
	return response.NewFieldError("skills",
		fmt.Sprintf("skills not compatible with role %s: %s", roleName, strings.Join(bad, ", ")))
}

func (s *ProfileService) ListSkills(userID uint) ([]models.UserSkill, error) {
	profile, err := s.ensure(s.db, userID)
	if err != nil {
		return nil, err
	}
	var skills []models.UserSkill
	if err := s.db.Preload("Skill.Role").
		Where("profile_id = ?", profile.ID).
		Order("id ASC").
		Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("list profile skills: %w", err)
	}
	return skills, nil
}

func (s *ProfileService) AddSkill(userID uint, req *AddSkillRequest) (*models.UserSkill, error) {
	profile, err := s.ensure(s.db, userID)
	if err != nil {
		return nil, err
	}
	skill, err := s.catalog.GetSkill(nil, req.SkillID)
	if err != nil {
		return nil, err
	}
	if err := checkCompatible(s.db, []models.Skill{*skill}, profile.RoleID); err != nil {
		return nil, err
	}

	us := models.UserSkill{ProfileID: profile.ID, SkillID: skill.ID}
	if err := s.db.Create(&us).Error; err != nil {
		if isDuplicate(err) {
			return nil, response.NewConflict(fmt.Sprintf("skill %q is already on your profile", skill.Name))
		}
		return nil, fmt.Errorf("add profile skill: %w", err)
	}
	us.Skill = skill
	return &us, nil
}

// RemoveSkill detaches one of the caller's skills; another profile's entry is not found.
func (s *ProfileService) RemoveSkill(userID, userSkillID uint) error {
	profile, err := s.ensure(s.db, userID)
	if err != nil {
		return err
	}
	result := s.db.Where("id = ? AND profile_id = ?", userSkillID, profile.ID).Delete(&models.UserSkill{})
	if result.Error != nil {
		return fmt.Errorf("remove profile skill: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("skill not found on your profile")
	}
	return nil
}
