package domain

import (
	"database/sql"
	"time"
)

// OutboxStatus is the dispatcher-visible lifecycle of an OutboxRecord.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
)

// Outbox event types, referenced by both the write-path services that
// append them and the dispatcher/bridge that consume them.
const (
	EventMessageCreated      = "chat.message_created"
	EventConversationCreated = "chat.conversation_created"
	EventConversationUpdated = "chat.conversation_updated"
)

// OutboxRecord is a row in the transactional outbox. A record only
// leaves pending/failed under a row lock held by exactly one dispatcher
// (enforced by SELECT ... FOR UPDATE SKIP LOCKED at the storage layer).
type OutboxRecord struct {
	ID          int64
	EventType   string
	Payload     map[string]interface{}
	Status      OutboxStatus
	Attempts    int
	NextRetryAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
