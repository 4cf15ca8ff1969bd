package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the kind of content a message carries: the three
// shapes a support conversation actually needs.
type MessageType string

const (
	MessageText       MessageType = "text"
	MessageSystem     MessageType = "system"
	MessageAttachment MessageType = "attachment"
)

// Message is an append-only row in a conversation. The tuple
// (ConversationID, SenderKind, SenderID, ClientMsgID) is the idempotency
// key enforced by a unique constraint at the storage layer.
type Message struct {
	ID            uuid.UUID
	ConversationID uuid.UUID
	SenderKind    PrincipalKind
	SenderID      int64
	Type          MessageType
	Body          *string
	Payload       map[string]interface{}
	ClientMsgID   uuid.UUID
	CreatedAt     time.Time
}

// NewMessage builds a Message row ready for insertion. created_at is
// assigned from the caller's clock so it agrees with the outbox payload
// written in the same transaction.
func NewMessage(conversationID uuid.UUID, senderKind PrincipalKind, senderID int64, clientMsgID uuid.UUID, typ MessageType, body *string, payload map[string]interface{}, now time.Time) *Message {
	return &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderKind:     senderKind,
		SenderID:       senderID,
		Type:           typ,
		Body:           body,
		Payload:        payload,
		ClientMsgID:    clientMsgID,
		CreatedAt:      now,
	}
}
