package services

import (
	"fmt"

	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/metrics"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// MembershipService runs the join-request workflow:
// pending -> approved | rejected, decided by the project owner only.
type MembershipService struct {
	db            *gorm.DB
	authz         *authz.Enforcer
	notifications *NotificationService
}

func NewMembershipService(db *gorm.DB, enforcer *authz.Enforcer, notifications *NotificationService) *MembershipService {
	return &MembershipService{db: db, authz: enforcer, notifications: notifications}
}

type CreateMembershipRequest struct {
	ProjectID     uint `json:"project_id" binding:"required"`
	ProjectRoleID uint `json:"project_role_id" binding:"required"`
}

type DecideMembershipRequest struct {
	Status string `json:"status" binding:"required,membership_decision"`
}

type MembershipListRequest struct {
	Pagination
	ProjectID *uint  `form:"project_id"`
	UserID    *uint  `form:"user_id"`
	Status    string `form:"status"`
}

type MembershipListResponse struct {
	Total    int64                      `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
	Items    []models.ProjectMembership `json:"items"`
}

func withMembershipDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("Project").Preload("ProjectRole.Role")
}

func (s *MembershipService) load(id uint) (*models.ProjectMembership, error) {
	var m models.ProjectMembership
	if err := withMembershipDetails(s.db).First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "membership not found")
	}
	return &m, nil
}

// relations lists what userID is to m. An owner who applied to their own
// project holds both relations.
func relations(m *models.ProjectMembership, userID uint) []string {
	var rels []string
	if m.Project != nil && m.Project.OwnerID == userID {
		rels = append(rels, authz.Owner)
	}
	if m.UserID == userID {
		rels = append(rels, authz.Requester)
	}
	if len(rels) == 0 {
		rels = append(rels, authz.Authenticated)
	}
	return rels
}

func (s *MembershipService) allowed(m *models.ProjectMembership, userID uint, act string) bool {
	for _, rel := range relations(m, userID) {
		if s.authz.Allow(rel, authz.ObjMembership, act) {
			return true
		}
	}
	return false
}

// notify writes a notification after the membership change has committed.
// Failures are logged and never undo the membership change.
func (s *MembershipService) notify(kind string, membershipID uint, send func(uint) (*models.Notification, error)) {
	if s.notifications == nil {
		return
	}
	if _, err := send(membershipID); err != nil {
		logger.Warn().Err(err).
			Uint("membership_id", membershipID).
			Str("type", kind).
			Msg("notification skipped")
	}
}

// Submit files a pending join request for one role of a project and tells the owner.
func (s *MembershipService) Submit(userID uint, req *CreateMembershipRequest) (*models.ProjectMembership, error) {
	var project models.Project
	if err := s.db.First(&project, req.ProjectID).Error; err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	var role models.ProjectRole
	if err := s.db.Preload("Role").First(&role, req.ProjectRoleID).Error; err != nil {
		return nil, notFoundOr(err, "project role not found")
	}
	if role.ProjectID != project.ID {
		return nil, response.NewFieldError("project_role_id", "role does not belong to this project")
	}
	if !s.authz.Allow(authz.Authenticated, authz.ObjMembership, authz.ActCreate) {
		return nil, response.NewForbidden("not allowed to request membership")
	}

	m := models.ProjectMembership{
		UserID:        userID,
		ProjectID:     project.ID,
		ProjectRoleID: role.ID,
		Status:        models.MembershipPending,
	}
	if err := s.db.Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return nil, response.NewConflict(fmt.Sprintf("you have already requested to join this project as %s", role.DisplayName()))
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	metrics.MembershipsSubmitted.Inc()
	logger.Info().Uint("membership_id", m.ID).Uint("project_id", project.ID).Uint("user_id", userID).Msg("join request submitted")

	s.notify(models.NotificationJoinRequest, m.ID, s.notifications.NotifyJoinRequest)
	return s.load(m.ID)
}

// Decide applies the owner's decision. Repeating the current decision is a
// no-op; changing a decided membership is a conflict.
func (s *MembershipService) Decide(userID, id uint, req *DecideMembershipRequest) (*models.ProjectMembership, error) {
	if !models.IsDecision(req.Status) {
		return nil, response.NewFieldError("status", "must be approved or rejected")
	}
	m, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !s.allowed(m, userID, authz.ActDecide) {
		return nil, response.NewForbidden("only the project owner can approve or reject requests")
	}

	if m.Status == req.Status {
		return m, nil
	}
	if m.IsTerminal() {
		return nil, response.NewConflict(fmt.Sprintf("membership has already been %s", m.Status))
	}

	result := s.db.Model(&models.ProjectMembership{}).
		Where("id = ? AND status = ?", id, models.MembershipPending).
		Update("status", req.Status)
	if result.Error != nil {
		return nil, fmt.Errorf("update membership: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Decided concurrently.
		current, err := s.load(id)
		if err != nil {
			return nil, err
		}
		if current.Status == req.Status {
			return current, nil
		}
		return nil, response.NewConflict(fmt.Sprintf("membership has already been %s", current.Status))
	}

	metrics.MembershipDecisions.WithLabelValues(req.Status).Inc()
	logger.Info().Uint("membership_id", id).Str("status", req.Status).Uint("owner_id", userID).Msg("join request decided")

	s.notify(req.Status, id, s.notifications.NotifyDecision)
	return s.load(id)
}

// List returns memberships the caller filed or that belong to projects the caller owns.
func (s *MembershipService) List(userID uint, req *MembershipListRequest) (*MembershipListResponse, error) {
	req.normalize(20)

	owned := s.db.Model(&models.Project{}).Select("id").Where("owner_id = ?", userID)
	query := s.db.Model(&models.ProjectMembership{}).
		Where("(project_memberships.user_id = ? OR project_memberships.project_id IN (?))", userID, owned)

	if req.ProjectID != nil {
		query = query.Where("project_memberships.project_id = ?", *req.ProjectID)
	}
	if req.UserID != nil {
		query = query.Where("project_memberships.user_id = ?", *req.UserID)
	}
	if req.Status != "" {
		if !models.IsValidMembershipStatus(req.Status) {
			return nil, response.NewFieldError("status", fmt.Sprintf("unknown status %q", req.Status))
		}
		query = query.Where("project_memberships.status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count memberships: %w", err)
	}

	var items []models.ProjectMembership
	if err := withMembershipDetails(query).
		Order("joined_at DESC, id DESC").
		Offset(req.offset()).
		Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	return &MembershipListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Get hides memberships outside the caller's visibility as not found.
func (s *MembershipService) Get(userID, id uint) (*models.ProjectMembership, error) {
	m, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !s.allowed(m, userID, authz.ActRead) {
		return nil, response.NewNotFound("membership not found")
	}
	return m, nil
}

// Withdraw lets the requester delete their own pending request.
func (s *MembershipService) Withdraw(userID, id uint) error {
	m, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if !s.allowed(m, userID, authz.ActWithdraw) {
		return response.NewForbidden("only the requester can withdraw a request")
	}
	if m.Status != models.MembershipPending {
		return response.NewConflict(fmt.Sprintf("membership has already been %s", m.Status))
	}

	result := s.db.Where("id = ? AND status = ?", id, models.MembershipPending).Delete(&models.ProjectMembership{})
	if result.Error != nil {
		return fmt.Errorf("withdraw membership: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return response.NewConflict("membership has already been decided")
	}
	return nil
}
