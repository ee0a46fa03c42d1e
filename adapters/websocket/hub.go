package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/utils/log"
)

// Hub tracks live clients per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	log.WithCtx(client.ctx).Debug("New client registered")
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.userID][client]; !ok {
		return
	}
	delete(h.clients[client.userID], client)
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
	}
	client.Close()
	log.WithCtx(client.ctx).Debug("Client unregistered")
}

// SendToUser delivers message to every connection of userID and returns
// how many accepted it.
func (h *Hub) SendToUser(userID int64, message []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.SendMessage(message); err != nil {
			log.WithCtx(c.ctx).Warn("Failed to push message", zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// IsUserConnected reports whether userID has at least one open connection.
func (h *Hub) IsUserConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, cs := range h.clients {
		n += len(cs)
	}
	return n
}
