package realtime

import (
	"context"
	"encoding/json"
	"time"

	"atsboost/internal/db"
	"atsboost/internal/models"
	"atsboost/pkg/logger"
)

// Notifier is the database side of the insert stream. Notifications carry only
// the message id and owner; the row is loaded with GetMessage.
type Notifier interface {
	Listen(ctx context.Context, channel string, fn func(payload string)) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
}

type insertEvent struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Listener feeds database insert notifications into a Hub.
type Listener struct {
	notifier Notifier
	hub      *Hub
	logger   *logger.Logger
	channel  string
}

func NewListener(n Notifier, hub *Hub, l *logger.Logger) *Listener {
	return &Listener{notifier: n, hub: hub, logger: l, channel: db.MessagesChannel}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (l *Listener) Run(ctx context.Context) {
	attempt := 0
	for {
		err := l.notifier.Listen(ctx, l.channel, func(payload string) {
			l.handle(ctx, payload)
		})
		if ctx.Err() != nil {
			l.logger.Info("Realtime listener stopped")
			return
		}

		attempt++
		wait := time.Duration(attempt) * time.Second
		if wait > 30*time.Second {
			wait = 30 * time.Second
		}
		l.logger.Errorw("Realtime listener disconnected, retrying...", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	var ev insertEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.ID == "" {
		l.logger.Errorw("Failed to decode message notification", "payload", payload, "error", err)
		return
	}

	// Nobody is watching this thread.
	if l.hub.Subscribers(ev.UserID) == 0 {
		return
	}

	msg, err := l.notifier.GetMessage(ctx, ev.ID)
	if err != nil {
		l.logger.Errorw("Failed to load notified message", "message_id", ev.ID, "error", err)
		return
	}
	l.hub.Publish(*msg)
}
