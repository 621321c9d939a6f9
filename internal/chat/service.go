// Package chat implements the per-user message thread with the expert team.
package chat

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"atsboost/internal/models"
	"atsboost/internal/storage"
	"atsboost/pkg/logger"
)

// MessageStore is the table side of the hosted data service.
type MessageStore interface {
	ListMessages(ctx context.Context, userID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error)
}

// ObjectStore is the bucket side of the hosted data service.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader, accessToken string) error
	PublicURL(objectPath string) string
}

// Observer is told about every message the service inserts.
type Observer interface {
	MessageSent(ctx context.Context, msg models.Message)
}

type Service struct {
	store     MessageStore
	objects   ObjectStore
	observers []Observer
	logger    *logger.Logger
}

func NewService(store MessageStore, objects ObjectStore, l *logger.Logger) *Service {
	return &Service{store: store, objects: objects, logger: l}
}

// AddObserver registers o; call before serving.
func (s *Service) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// History returns the user's messages ordered by creation time ascending.
func (s *Service) History(ctx context.Context, userID string) ([]models.Message, error) {
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		s.logger.Errorw("Error loading messages", "user_id", userID, "error", err)
		return nil, err
	}
	return msgs, nil
}

// SendText inserts a user (non-expert) message. Blank text is not sent.
func (s *Service) SendText(ctx context.Context, userID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyMessage
	}

	msg, err := s.store.InsertMessage(ctx, models.NewMessage{
		UserID:   userID,
		Content:  content,
		IsExpert: false,
	})
	if err != nil {
		s.logger.Errorw("Error sending message", "user_id", userID, "error", err)
		return nil, err
	}

	s.notify(ctx, *msg)
	return msg, nil
}

// Attachment is a file chosen in the chat's file picker.
type Attachment struct {
	Name string
	Body io.Reader
}

// SendFile uploads the file under the user's folder, resolves its public URL and
// inserts a message referencing it.
func (s *Service) SendFile(ctx context.Context, userID, accessToken string, file Attachment) (*models.Message, error) {
	name := filepath.Base(file.Name)
	if !IsAcceptedFile(name) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedAttachment, filepath.Ext(name))
	}

	objectPath := storage.ObjectPath(userID, name)
	if err := s.objects.Upload(ctx, objectPath, contentTypeFor(name), file.Body, accessToken); err != nil {
		s.logger.Errorw("Error uploading file", "user_id", userID, "path", objectPath, "error", err)
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	publicURL := s.objects.PublicURL(objectPath)

	msg, err := s.store.InsertMessage(ctx, models.NewMessage{
		UserID:        userID,
		Content:       "Shared file: " + name,
		IsExpert:      false,
		AttachmentURL: publicURL,
	})
	if err != nil {
		s.logger.Errorw("Error uploading file", "user_id", userID, "path", objectPath, "error", err)
		return nil, fmt.Errorf("record attachment: %w", err)
	}

	s.notify(ctx, *msg)
	return msg, nil
}

// SendExpertReply inserts a reply from the expert team into userID's thread.
func (s *Service) SendExpertReply(ctx context.Context, userID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyMessage
	}
	msg, err := s.store.InsertMessage(ctx, models.NewMessage{
		UserID:   userID,
		Content:  content,
		IsExpert: true,
	})
	if err != nil {
		s.logger.Errorw("Error sending expert reply", "user_id", userID, "error", err)
		return nil, err
	}
	return msg, nil
}

func (s *Service) notify(ctx context.Context, msg models.Message) {
	for _, o := range s.observers {
		o.MessageSent(ctx, msg)
	}
}
