package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a relayed chat message. It is immutable once created and is
// insert-only from the relay's point of view.
type Message struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	UserID    string    `json:"user_id" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"type:timestamptz;not null;index:idx_messages_created_at"`
}

// TableName pins the table name independent of gorm's naming strategy
func (Message) TableName() string {
	return "messages"
}

// NewMessage builds a Message with a fresh identifier
func NewMessage(content, userID string, createdAt time.Time) *Message {
	return &Message{
		ID:        uuid.New(),
		Content:   content,
		UserID:    userID,
		CreatedAt: createdAt.UTC(),
	}
}

// IncomingMessage is the record a client sends over the relay.
// Author is the canonical key; user_id is accepted from older clients.
// Keys must be present but their values are opaque, so empty strings pass.
type IncomingMessage struct {
	Content *string `json:"content" validate:"required"`
	Author  *string `json:"author" validate:"required_without=UserID"`
	UserID  *string `json:"user_id,omitempty"`
}

// Text returns the message body
func (m IncomingMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// AuthorID returns the author, preferring the canonical key
func (m IncomingMessage) AuthorID() string {
	switch {
	case m.Author != nil:
		return *m.Author
	case m.UserID != nil:
		return *m.UserID
	default:
		return ""
	}
}
