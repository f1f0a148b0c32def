package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/internal/utils"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
)

const streamHeartbeat = 30 * time.Second

// SSEHandler streams new notifications to their recipient.
type SSEHandler struct {
	hub *services.NotificationHub
}

func NewSSEHandler(hub *services.NotificationHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamNotifications authenticates with ?token= because EventSource
// cannot send headers; a Bearer header is accepted too.
// GET /api/notifications/stream
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if token == "" {
		response.Unauthorized(c, "authorization required")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(claims.UserID, clientID)
	defer h.hub.Unsubscribe(claims.UserID, clientID)

	logger.Info().Uint("user_id", claims.UserID).Str("client_id", clientID).Int("total", h.hub.ClientCount()).Msg("notification stream connected")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(n)
			if err != nil {
				logger.Error().Err(err).Msg("notification stream marshal error")
				return true
			}
			fmt.Fprintf(w, "id: %d\nevent: notification\ndata: %s\n\n", n.ID, data)
			c.Writer.Flush()
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Uint("user_id", claims.UserID).Str("client_id", clientID).Msg("notification stream disconnected")
			return false
		}
	})
}
