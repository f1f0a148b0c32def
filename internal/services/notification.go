package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/metrics"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService is the only writer of notifications. Creation is
// driven by membership events, project updates and staff broadcasts.
type NotificationService struct {
	db    *gorm.DB
	authz *authz.Enforcer
	hub   *NotificationHub
}

func NewNotificationService(db *gorm.DB, enforcer *authz.Enforcer, hub *NotificationHub) *NotificationService {
	return &NotificationService{db: db, authz: enforcer, hub: hub}
}

type NotificationListRequest struct {
	Pagination
	Type string `form:"type"`
	Read *bool  `form:"read"`
}

type NotificationListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.Notification `json:"items"`
}

type BroadcastRequest struct {
	Title        string `json:"title" binding:"required,max=100"`
	Message      string `json:"message" binding:"required"`
	RecipientIDs []uint `json:"recipient_ids"`
}

func (s *NotificationService) create(n *models.Notification) error {
	n.Title = truncate(n.Title, models.NotificationTitleMax)
	if err := s.db.Create(n).Error; err != nil {
		metrics.NotificationFailures.WithLabelValues(n.Type).Inc()
		return fmt.Errorf("create %s notification: %w", n.Type, err)
	}
	metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
	s.publish(*n)
	return nil
}

func (s *NotificationService) publish(n models.Notification) {
	if s.hub != nil {
		s.hub.Publish(n)
	}
}

func (s *NotificationService) loadMembership(id uint) (*models.ProjectMembership, error) {
	var m models.ProjectMembership
	err := s.db.Preload("User").Preload("Project").Preload("ProjectRole.Role").First(&m, id).Error
	if err != nil {
		return nil, notFoundOr(err, "membership not found")
	}
	return &m, nil
}

// NotifyJoinRequest tells the project owner about a new join request.
func (s *NotificationService) NotifyJoinRequest(membershipID uint) (*models.Notification, error) {
	m, err := s.loadMembership(membershipID)
	if err != nil {
		return nil, err
	}

	requester := m.UserID
	n := &models.Notification{
		RecipientID:      m.Project.OwnerID,
		Type:             models.NotificationJoinRequest,
		Title:            fmt.Sprintf("New join request for %s", m.Project.Title),
		Message:          fmt.Sprintf("%s has requested to join your project as a %s.", m.User.Email, m.ProjectRole.DisplayName()),
		RelatedProjectID: &m.ProjectID,
		RelatedUserID:    &requester,
		Data: datatypes.JSONMap{
			"membership_id": m.ID,
			"role_id":       m.ProjectRoleID,
		},
	}
	if err := s.create(n); err != nil {
		return nil, err
	}
	return n, nil
}

// NotifyDecision tells the requester whether the owner accepted or rejected them.
func (s *NotificationService) NotifyDecision(membershipID uint) (*models.Notification, error) {
	m, err := s.loadMembership(membershipID)
	if err != nil {
		return nil, err
	}

	var typ, outcome string
	switch m.Status {
	case models.MembershipApproved:
		typ, outcome = models.NotificationRequestAccepted, "accepted"
	case models.MembershipRejected:
		typ, outcome = models.NotificationRequestRejected, "rejected"
	default:
		return nil, response.NewConflict(fmt.Sprintf("membership %d has not been decided", m.ID))
	}

	owner := m.Project.OwnerID
	n := &models.Notification{
		RecipientID:      m.UserID,
		Type:             typ,
		Title:            fmt.Sprintf("Request %s for %s", outcome, m.Project.Title),
		Message:          fmt.Sprintf("Your request to join %s as a %s has been %s.", m.Project.Title, m.ProjectRole.DisplayName(), outcome),
		RelatedProjectID: &m.ProjectID,
		RelatedUserID:    &owner,
		Data: datatypes.JSONMap{
			"membership_id": m.ID,
			"role_id":       m.ProjectRoleID,
			"status":        m.Status,
		},
	}
	if err := s.create(n); err != nil {
		return nil, err
	}
	return n, nil
}

// NotifyProjectUpdate tells approved members, except the actor, that the project changed.
func (s *NotificationService) NotifyProjectUpdate(project *models.Project, actorID uint) (int, error) {
	var recipients []uint
	err := s.db.Model(&models.ProjectMembership{}).
		Distinct("user_id").
		Where("project_id = ? AND status = ? AND user_id <> ?", project.ID, models.MembershipApproved, actorID).
		Pluck("user_id", &recipients).Error
	if err != nil {
		return 0, fmt.Errorf("project members: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	notifications := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		notifications = append(notifications, models.Notification{
			RecipientID:      id,
			Type:             models.NotificationProjectUpdate,
			Title:            truncate(fmt.Sprintf("Project updated: %s", project.Title), models.NotificationTitleMax),
			Message:          fmt.Sprintf("%s has been updated. Current status: %s.", project.Title, project.Status),
			RelatedProjectID: &project.ID,
			RelatedUserID:    &actorID,
		})
	}
	return s.insertAll(s.db, notifications)
}

// Broadcast sends a system_update to the given users, or to every active user
// when recipientIDs is empty. Unknown ids are ignored.
func (s *NotificationService) Broadcast(ctx context.Context, task *BroadcastTask) (int, error) {
	title := strings.TrimSpace(task.Title)
	message := strings.TrimSpace(task.Message)
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "title is required"
	}
	if message == "" {
		fields["message"] = "message is required"
	}
	if len(fields) > 0 {
		return 0, response.NewValidation(fields)
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&models.User{}).Where("is_active = ?", true)
	if len(task.RecipientIDs) > 0 {
		query = query.Where("id IN ?", task.RecipientIDs)
	}
	var recipients []uint
	if err := query.Order("id ASC").Pluck("id", &recipients).Error; err != nil {
		return 0, fmt.Errorf("broadcast recipients: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	var sender *uint
	if task.SenderID != 0 {
		sender = &task.SenderID
	}
	notifications := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		notifications = append(notifications, models.Notification{
			RecipientID:   id,
			Type:          models.NotificationSystemUpdate,
			Title:         truncate(title, models.NotificationTitleMax),
			Message:       message,
			RelatedUserID: sender,
		})
	}

	count, err := s.insertAll(db, notifications)
	if err != nil {
		return 0, err
	}
	logger.Info().Int("recipients", count).Str("title", title).Msg("broadcast delivered")
	return count, nil
}

// ProcessBroadcast adapts Broadcast to the task queue processor signature.
func (s *NotificationService) ProcessBroadcast(ctx context.Context, task *BroadcastTask) error {
	_, err := s.Broadcast(ctx, task)
	return err
}

func (s *NotificationService) insertAll(db *gorm.DB, notifications []models.Notification) (int, error) {
	typ := notifications[0].Type
	if err := db.CreateInBatches(&notifications, 100).Error; err != nil {
		metrics.NotificationFailures.WithLabelValues(typ).Add(float64(len(notifications)))
		return 0, fmt.Errorf("create %s notifications: %w", typ, err)
	}
	metrics.NotificationsCreated.WithLabelValues(typ).Add(float64(len(notifications)))
	for _, n := range notifications {
		s.publish(n)
	}
	return len(notifications), nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(userID uint, req *NotificationListRequest) (*NotificationListResponse, error) {
	req.normalize(20)
	if req.Type != "" && !models.IsValidNotificationType(req.Type) {
		return nil, response.NewFieldError("type", fmt.Sprintf("unknown notification type %q", req.Type))
	}

	query := s.db.Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.Read != nil {
		query = query.Where("is_read = ?", *req.Read)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	var items []models.Notification
	if err := query.Order("created_at DESC, id DESC").
		Offset(req.offset()).
		Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return &NotificationListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// find loads a notification for the caller. Notifications of other users
// are reported as missing, never as forbidden.
func (s *NotificationService) find(userID, id uint, act string) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "notification not found")
	}

	relation := authz.Authenticated
	if n.RecipientID == userID {
		relation = authz.Recipient
	}
	if !s.authz.Allow(relation, authz.ObjNotification, act) {
		return nil, response.NewNotFound("notification not found")
	}
	return &n, nil
}

func (s *NotificationService) Get(userID, id uint) (*models.Notification, error) {
	return s.find(userID, id, authz.ActRead)
}

// MarkRead sets the read flag. Marking an already read notification succeeds.
func (s *NotificationService) MarkRead(userID, id uint) (*models.Notification, error) {
	n, err := s.find(userID, id, authz.ActUpdate)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	if err := s.db.Model(n).Update("is_read", true).Error; err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	n.Read = true
	return n, nil
}

// MarkAllRead marks every unread notification of the caller and returns how many changed.
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
