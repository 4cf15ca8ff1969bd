package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ConversationStatus is the lifecycle state of a Conversation. A
// support conversation only ever transitions open -> closed; reopening
// is not modeled.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a thread between a user and zero or more admins, typed
// by TopicType (e.g. "support", "order").
type Conversation struct {
	ID              uuid.UUID
	TopicType       string
	TopicID         sql.NullInt64
	Status          ConversationStatus
	AssigneeAdminID sql.NullInt64
	LastMessageAt   sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewConversation builds an open conversation for the given topic. now is
// supplied by the caller's clock port so it matches the outbox payload
// written in the same transaction.
func NewConversation(topicType string, topicID sql.NullInt64, now time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.New(),
		TopicType: topicType,
		TopicID:   topicID,
		Status:    ConversationOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Conversation) IsOpen() bool { return c.Status == ConversationOpen }
