package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and stream hub.
type HealthHandler struct {
	db    *gorm.DB
	hub   *services.NotificationHub
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, hub *services.NotificationHub, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, hub: hub, queue: queue}
}

// CheckHealth returns the health status of all subsystems.
// GET /api/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	streamClients := 0
	if h.hub != nil {
		streamClients = h.hub.ClientCount()
	}

	var pending int64
	if dbStatus == "ok" {
		h.db.Model(&models.ProjectMembership{}).
			Where("status = ?", models.MembershipPending).
			Count(&pending)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "teamsync",
		"components": gin.H{
			"database":         dbStatus,
			"queue_mode":       queueMode,
			"stream_clients":   streamClients,
			"pending_requests": pending,
		},
	})
}
