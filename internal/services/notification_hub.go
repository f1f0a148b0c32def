package services

import (
	"sync"

	"github.com/teamsync/backend/internal/metrics"
	"github.com/teamsync/backend/internal/models"
)

const subscriberBuffer = 64

// NotificationHub fans freshly created notifications out to the stream
// connections of their recipient.
type NotificationHub struct {
	clients map[uint]map[string]chan models.Notification
	closed  bool
	mu      sync.RWMutex
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients: make(map[uint]map[string]chan models.Notification),
	}
}

// Subscribe registers a stream connection of userID.
func (h *NotificationHub) Subscribe(userID uint, clientID string) <-chan models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan models.Notification)
		close(ch)
		return ch
	}

	conns, ok := h.clients[userID]
	if !ok {
		conns = make(map[string]chan models.Notification)
		h.clients[userID] = conns
	}
	if old, ok := conns[clientID]; ok {
		close(old)
	} else {
		metrics.SSEClients.Inc()
	}
	ch := make(chan models.Notification, subscriberBuffer)
	conns[clientID] = ch
	return ch
}

func (h *NotificationHub) Unsubscribe(userID uint, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	if ch, ok := conns[clientID]; ok {
		close(ch)
		delete(conns, clientID)
		metrics.SSEClients.Dec()
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

// Publish delivers n to every connection of its recipient. Slow clients
// with a full buffer miss the event; the list endpoint still has it.
func (h *NotificationHub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[n.RecipientID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Close ends every open stream and refuses new ones. It is registered as
// an http.Server shutdown hook so that Shutdown does not wait on streams.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for userID, conns := range h.clients {
		for _, ch := range conns {
			close(ch)
			metrics.SSEClients.Dec()
		}
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of open connections across all users.
func (h *NotificationHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
