// Package realtime fans inserted messages out to per-user subscribers.
package realtime

import (
	"sync"

	"atsboost/internal/models"
	"atsboost/pkg/logger"
)

const defaultBuffer = 64

// Subscription receives insert events for one user until Close is called.
type Subscription struct {
	C      <-chan models.Message
	c      chan models.Message
	userID string
	hub    *Hub
	once   sync.Once
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *logger.Logger
}

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		logger: l,
	}
}

// Subscribe registers interest in inserts whose user_id equals userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	c := make(chan models.Message, h.buffer)
	s := &Subscription{C: c, c: c, userID: userID, hub: h}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	total := len(h.subs[userID])
	h.mu.Unlock()

	h.logger.Debugw("Realtime subscription opened", "user_id", userID, "user_subscriptions", total)
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := h.subs[s.userID]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(h.subs, s.userID)
		}
	}
	close(s.c)
	h.logger.Debugw("Realtime subscription released", "user_id", s.userID)
}

// Publish delivers msg to the owner's subscribers. A subscriber whose buffer is
// full misses the event rather than stalling the others.
func (h *Hub) Publish(msg models.Message) {
	// Sends happen under the read lock so remove cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[msg.UserID] {
		select {
		case s.c <- msg:
		default:
			h.logger.Warnw("Dropping realtime event for slow subscriber", "user_id", msg.UserID, "message_id", msg.ID)
		}
	}
}

// Subscribers reports how many open subscriptions userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
