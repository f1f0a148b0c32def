package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	queue               services.TaskQueue
}

func NewNotificationHandler(notificationService *services.NotificationService, queue services.TaskQueue) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, queue: queue}
}

// List returns the caller's notifications, newest first
// GET /api/notifications?type=&read=
func (h *NotificationHandler) List(c *gin.Context) {
	var req services.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.notificationService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// POST /api/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// GET /api/notifications/:id
func (h *NotificationHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	n, err := h.notificationService.Get(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}

// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	n, err := h.notificationService.MarkRead(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}

// Broadcast queues a system_update for the given users, or everyone
// POST /api/notifications/broadcast (staff only)
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req services.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	task := &services.BroadcastTask{
		Title:        req.Title,
		Message:      req.Message,
		RecipientIDs: req.RecipientIDs,
		SenderID:     middleware.GetUserID(c),
	}
	if err := h.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Str("title", req.Title).Msg("failed to enqueue broadcast")
		response.ServerError(c, "failed to queue broadcast")
		return
	}

	response.Accepted(c, gin.H{
		"queued": true,
		"async":  h.queue.IsAsync(),
	})
}
