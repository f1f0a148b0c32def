package services

import (
	"fmt"
	"strings"

	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/metrics"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db            *gorm.DB
	catalog       *CatalogService
	authz         *authz.Enforcer
	notifications *NotificationService
}

func NewProjectService(db *gorm.DB, catalog *CatalogService, enforcer *authz.Enforcer, notifications *NotificationService) *ProjectService {
	return &ProjectService{
		db:            db,
		catalog:       catalog,
		authz:         enforcer,
		notifications: notifications,
	}
}

// SkillSpec names one skill requirement: a catalog skill by id or name,
// or a custom label.
type SkillSpec struct {
	SkillID         *uint  `json:"skill_id"`
	SkillName       string `json:"skill_name"`
	CustomSkillName string `json:"custom_skill_name"`
}

// RoleSpec names one role requirement: a catalog role by id or name,
// or a custom label, plus headcount and skills.
type RoleSpec struct {
	RoleID         *uint       `json:"role_id"`
	RoleName       string      `json:"role_name"`
	CustomRoleName string      `json:"custom_role_name"`
	NumberRequired int         `json:"number_required"`
	Skills         []SkillSpec `json:"skills"`
}

type CreateProjectRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	Status      string     `json:"status" binding:"omitempty,project_status"`
	Roles       []RoleSpec `json:"roles"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Status      *string `json:"status" binding:"omitempty,project_status"`
}

type ProjectListRequest struct {
	Pagination
	Status   string `form:"status"`
	Role     string `form:"role"`
	Skill    string `form:"skill"`
	Search   string `form:"search"`
	MemberOf *uint  `form:"member_of"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

func (r *RoleSpec) custom() string { return strings.TrimSpace(r.CustomRoleName) }
func (r *RoleSpec) named() string  { return strings.TrimSpace(r.RoleName) }

func (s *SkillSpec) custom() string { return strings.TrimSpace(s.CustomSkillName) }
func (s *SkillSpec) named() string  { return strings.TrimSpace(s.SkillName) }

// validate checks the mutual exclusivity rules of a role spec and its skills.
// Errors are keyed by prefix, e.g. "roles[0]" and "roles[0].skills[1]".
func (r *RoleSpec) validate(prefix string, fields map[string]string) {
	predefined := r.RoleID != nil || r.named() != ""
	custom := r.custom() != ""
	switch {
	case r.RoleID != nil && r.named() != "":
		fields[prefix] = "provide role_id or role_name, not both"
	case predefined && custom:
		fields[prefix] = "provide either a predefined role or a custom role name, not both"
	case !predefined && !custom:
		fields[prefix] = "a predefined role or a custom role name is required"
	}
	if r.NumberRequired < 0 {
		fields[prefix+".number_required"] = "must be at least 1"
	}

	for j := range r.Skills {
		sk := &r.Skills[j]
		key := fmt.Sprintf("%s.skills[%d]", prefix, j)
		predefined := sk.SkillID != nil || sk.named() != ""
		custom := sk.custom() != ""
		switch {
		case sk.SkillID != nil && sk.named() != "":
			fields[key] = "provide skill_id or skill_name, not both"
		case predefined && custom:
			fields[key] = "provide either a predefined skill or a custom skill name, not both"
		case !predefined && !custom:
			fields[key] = "a predefined skill or a custom skill name is required"
		}
	}
}

// Create persists the project with all its role and skill requirements, or nothing.
func (s *ProjectService) Create(req *CreateProjectRequest, ownerID uint) (*models.Project, error) {
	fields := map[string]string{}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		fields["title"] = "title is required"
	}
	status := req.Status
	if status == "" {
		status = models.ProjectStatusPending
	}
	if !models.IsValidProjectStatus(status) {
		fields["status"] = fmt.Sprintf("must be one of %s", strings.Join(models.ProjectStatuses(), ", "))
	}
	for i := range req.Roles {
		req.Roles[i].validate(fmt.Sprintf("roles[%d]", i), fields)
	}
	if len(fields) > 0 {
		return nil, response.NewValidation(fields)
	}
	if !s.authz.Allow(authz.Authenticated, authz.ObjProject, authz.ActCreate) {
		return nil, response.NewForbidden("not allowed to create projects")
	}

	project := models.Project{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		OwnerID:     ownerID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		for i := range req.Roles {
			if _, err := s.addRole(tx, project.ID, &req.Roles[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProjectsCreated.Inc()
	logger.Info().Uint("project_id", project.ID).Uint("owner_id", ownerID).Int("roles", len(req.Roles)).Msg("project created")
	return s.Get(ownerID, project.ID)
}

// addRole resolves and inserts one role requirement with its skills inside tx.
func (s *ProjectService) addRole(tx *gorm.DB, projectID uint, spec *RoleSpec) (*models.ProjectRole, error) {
	count := spec.NumberRequired
	if count == 0 {
		count = 1
	}
	pr := models.ProjectRole{ProjectID: projectID, NumberRequired: count}

	// Custom roles have no catalog scope, so their named skills are resolved as general skills.
	var scope *uint
	label := spec.custom()
	if label != "" {
		pr.CustomRoleName = &label
	} else {
		role, err := s.catalog.ResolveRole(tx, spec.RoleID, spec.named())
		if err != nil {
			return nil, err
		}
		pr.RoleID = &role.ID
		scope = &role.ID
		label = role.Name
	}

	if err := tx.Omit("Skills").Create(&pr).Error; err != nil {
		if isDuplicate(err) {
			return nil, response.NewConflict(fmt.Sprintf("role %q is already required by this project", label))
		}
		return nil, fmt.Errorf("create project role: %w", err)
	}

	for j := range spec.Skills {
		sk := &spec.Skills[j]
		prs := models.ProjectRoleSkill{ProjectRoleID: pr.ID}
		name := sk.custom()
		if name != "" {
			prs.CustomSkillName = &name
		} else {
			skill, err := s.catalog.ResolveSkill(tx, sk.SkillID, sk.named(), scope)
			if err != nil {
				return nil, err
			}
			prs.SkillID = &skill.ID
			name = skill.Name
		}
		if err := tx.Create(&prs).Error; err != nil {
			if isDuplicate(err) {
				return nil, response.NewConflict(fmt.Sprintf("skill %q is listed more than once for role %q", name, label))
			}
			return nil, fmt.Errorf("create role skill: %w", err)
		}
	}
	return &pr, nil
}

func (s *ProjectService) find(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	return &project, nil
}

func (s *ProjectService) relation(project *models.Project, userID uint) string {
	if project.OwnerID == userID {
		return authz.Owner
	}
	return authz.Authenticated
}

func withRequirements(db *gorm.DB) *gorm.DB {
	return db.Preload("Owner").
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Roles.Role").
		Preload("Roles.Skills", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Roles.Skills.Skill")
}

// Get returns the project with its requirements. The owner sees every
// membership, anyone else only their own.
func (s *ProjectService) Get(userID, id uint) (*models.Project, error) {
	bare, err := s.find(id)
	if err != nil {
		return nil, err
	}
	relation := s.relation(bare, userID)
	if !s.authz.Allow(relation, authz.ObjProject, authz.ActRead) {
		return nil, response.NewNotFound("project not found")
	}
	seeAll := s.authz.Allow(relation, authz.ObjMembership, authz.ActRead)

	var project models.Project
	err = withRequirements(s.db).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			if !seeAll {
				db = db.Where("user_id = ?", userID)
			}
			return db.Order("joined_at ASC, id ASC")
		}).
		Preload("Memberships.User").
		Preload("Memberships.ProjectRole.Role").
		First(&project, id).Error
	if err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	return &project, nil
}

func (s *ProjectService) list(query *gorm.DB, p *Pagination) (*ProjectListResponse, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}

	var projects []models.Project
	if err := withRequirements(query).
		Order("created_at DESC, id DESC").
		Offset(p.offset()).
		Limit(p.PageSize).
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Items:    projects,
	}, nil
}

// List filters projects. Role and skill match by case-insensitive name prefix,
// search looks in title and description.
func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	req.normalize(10)
	query := s.db.Model(&models.Project{})

	if req.Status != "" {
		if !models.IsValidProjectStatus(req.Status) {
			return nil, response.NewFieldError("status", fmt.Sprintf("unknown status %q", req.Status))
		}
		query = query.Where("projects.status = ?", req.Status)
	}
	if strings.TrimSpace(req.Role) != "" {
		pattern := likePrefix(req.Role)
		query = query.Where("projects.id IN (?)", s.db.Table("project_roles AS pr").
			Select("pr.project_id").
			Joins("LEFT JOIN roles r ON r.id = pr.role_id").
			Where("LOWER(r.name) LIKE ? "+likeEscape+" OR LOWER(pr.custom_role_name) LIKE ? "+likeEscape, pattern, pattern))
	}
	if strings.TrimSpace(req.Skill) != "" {
		pattern := likePrefix(req.Skill)
		query = query.Where("projects.id IN (?)", s.db.Table("project_role_skills AS prs").
			Select("pr.project_id").
			Joins("JOIN project_roles pr ON pr.id = prs.project_role_id").
			Joins("LEFT JOIN skills sk ON sk.id = prs.skill_id").
			Where("LOWER(sk.name) LIKE ? "+likeEscape+" OR LOWER(prs.custom_skill_name) LIKE ? "+likeEscape, pattern, pattern))
	}
	if strings.TrimSpace(req.Search) != "" {
		pattern := likeContains(req.Search)
		query = query.Where("(LOWER(projects.title) LIKE ? "+likeEscape+" OR LOWER(projects.description) LIKE ? "+likeEscape+")", pattern, pattern)
	}
	if req.MemberOf != nil {
		query = s.memberOf(query, *req.MemberOf)
	}

	return s.list(query, &req.Pagination)
}

// memberOf keeps projects the user owns or holds an approved membership in.
func (s *ProjectService) memberOf(query *gorm.DB, userID uint) *gorm.DB {
	approved := s.db.Model(&models.ProjectMembership{}).
		Select("project_id").
		Where("user_id = ? AND status = ?", userID, models.MembershipApproved)
	return query.Where("(projects.owner_id = ? OR projects.id IN (?))", userID, approved)
}

func (s *ProjectService) MyProjects(userID uint, p *Pagination) (*ProjectListResponse, error) {
	p.normalize(10)
	return s.list(s.memberOf(s.db.Model(&models.Project{}), userID), p)
}

func (s *ProjectService) requireOwner(project *models.Project, userID uint, obj, act, msg string) error {
	if !s.authz.Allow(s.relation(project, userID), obj, act) {
		return response.NewForbidden(msg)
	}
	return nil
}

// Update patches an owned project and tells approved members about it.
func (s *ProjectService) Update(userID, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(project, userID, authz.ObjProject, authz.ActUpdate, "only the project owner can update this project"); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	fields := map[string]string{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			fields["title"] = "title cannot be empty"
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !models.IsValidProjectStatus(*req.Status) {
			fields["status"] = fmt.Sprintf("must be one of %s", strings.Join(models.ProjectStatuses(), ", "))
		}
		updates["status"] = *req.Status
	}
	if len(fields) > 0 {
		return nil, response.NewValidation(fields)
	}

	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
		if project, err = s.find(id); err != nil {
			return nil, err
		}
		if s.notifications != nil {
			if _, err := s.notifications.NotifyProjectUpdate(project, userID); err != nil {
				logger.Warn().Err(err).Uint("project_id", project.ID).Msg("project update notification skipped")
			}
		}
	}
	return s.Get(userID, id)
}

// Delete removes an owned project with its roles, role skills and memberships.
// Notifications survive and lose the project link.
func (s *ProjectService) Delete(userID, id uint) error {
	project, err := s.find(id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(project, userID, authz.ObjProject, authz.ActDelete, "only the project owner can delete this project"); err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Notification{}).
			Where("related_project_id = ?", id).
			Update("related_project_id", nil).Error; err != nil {
			return fmt.Errorf("unlink notifications: %w", err)
		}
		roleIDs := tx.Model(&models.ProjectRole{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("project_role_id IN (?)", roleIDs).Delete(&models.ProjectRoleSkill{}).Error; err != nil {
			return fmt.Errorf("delete role skills: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMembership{}).Error; err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectRole{}).Error; err != nil {
			return fmt.Errorf("delete project roles: %w", err)
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Uint("project_id", id).Uint("user_id", userID).Msg("project deleted")
	return nil
}

// AddRole appends a role requirement to an owned project.
func (s *ProjectService) AddRole(userID, projectID uint, spec *RoleSpec) (*models.ProjectRole, error) {
	project, err := s.find(projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(project, userID, authz.ObjProjectRole, authz.ActCreate, "only the project owner can change its roles"); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	spec.validate("role", fields)
	if len(fields) > 0 {
		return nil, response.NewValidation(fields)
	}

	var created *models.ProjectRole
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.addRole(tx, projectID, spec)
		return err
	})
	if err != nil {
		return nil, err
	}

	var role models.ProjectRole
	if err := s.db.Preload("Role").
		Preload("Skills", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Skills.Skill").
		First(&role, created.ID).Error; err != nil {
		return nil, fmt.Errorf("reload project role: %w", err)
	}
	return &role, nil
}

// RemoveRole deletes a role requirement together with its skills and the memberships filed for it.
func (s *ProjectService) RemoveRole(userID, projectID, roleID uint) error {
	project, err := s.find(projectID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(project, userID, authz.ObjProjectRole, authz.ActDelete, "only the project owner can change its roles"); err != nil {
		return err
	}

	var role models.ProjectRole
	if err := s.db.Where("id = ? AND project_id = ?", roleID, projectID).First(&role).Error; err != nil {
		return notFoundOr(err, "project role not found")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_role_id = ?", role.ID).Delete(&models.ProjectRoleSkill{}).Error; err != nil {
			return fmt.Errorf("delete role skills: %w", err)
		}
		if err := tx.Where("project_role_id = ?", role.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
			return fmt.Errorf("delete role memberships: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("delete project role: %w", err)
		}
		return nil
	})
}
