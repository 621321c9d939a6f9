package models

import (
	"time"
)

// Message is one row of the per-user chat thread.
type Message struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	IsExpert      bool      `json:"is_expert"`
	CreatedAt     time.Time `json:"created_at"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
}

// NewMessage is the insert payload; id and created_at are assigned by the database.
type NewMessage struct {
	UserID        string `json:"user_id"`
	Content       string `json:"content"`
	IsExpert      bool   `json:"is_expert"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}
