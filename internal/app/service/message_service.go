// Package service implements the transactional write path for
// conversations, messages, and read state. Every exported function owns
// one transactional scope: it opens a UnitOfWork, commits after a
// successful write, and rolls back (deferred) otherwise. Read-only calls
// and a duplicate SendMessage return without committing.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/app/permissions"
	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/clock"
	"github.com/shopmindai/chat-core/internal/domain"
)

// MessageService wraps SendMessage/ListMessages.
type MessageService struct {
	UoW   port.UnitOfWorkFactory
	Clock clock.Clock
}

func NewMessageService(uow port.UnitOfWorkFactory, c clock.Clock) *MessageService {
	return &MessageService{UoW: uow, Clock: c}
}

// SendMessage persists a message exactly once per (conversation_id,
// sender_kind, sender_id, client_msg_id) and, on the first insert, appends
// a chat.message_created outbox record in the same transaction.
func (s *MessageService) SendMessage(ctx context.Context, conversationID uuid.UUID, principal domain.Principal, clientMsgID uuid.UUID, typ domain.MessageType, body *string, payload map[string]interface{}) (*domain.Message, bool, error) {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, false, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	conv, err := scope.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, false, apperr.Storage("load conversation", err)
	}
	if conv == nil {
		return nil, false, apperr.NotFound("conversation not found")
	}

	if err := permissions.AssertConversationAccess(ctx, scope.Participants(), conversationID, principal); err != nil {
		return nil, false, err
	}

	now := s.Clock.Now()
	msg := domain.NewMessage(conversationID, principal.Kind, principal.SubjectID, clientMsgID, typ, body, payload, now)

	existing, created, err := scope.Messages().CreateIfNotExists(ctx, msg)
	if err != nil {
		return nil, false, apperr.Storage("insert message", err)
	}
	if !created {
		// A retry of an already-applied send: no further side effects, no commit.
		return existing, false, nil
	}

	if err := scope.Conversations().TouchLastMessageAt(ctx, conversationID, msg.CreatedAt); err != nil {
		return nil, false, apperr.Storage("touch last_message_at", err)
	}

	outboxPayload := map[string]interface{}{
		"message_id":      msg.ID.String(),
		"conversation_id": msg.ConversationID.String(),
		"sender_kind":     string(msg.SenderKind),
		"sender_id":       msg.SenderID,
		"type":            string(msg.Type),
	}
	if msg.Body != nil {
		outboxPayload["body"] = *msg.Body
	}
	if err := scope.Outbox().Add(ctx, domain.EventMessageCreated, outboxPayload); err != nil {
		return nil, false, apperr.Storage("append outbox", err)
	}

	if err := scope.Commit(ctx); err != nil {
		return nil, false, apperr.Storage("commit", err)
	}
	return msg, true, nil
}

// ListMessages authorises the caller then returns messages ordered by
// (created_at asc, id asc), optionally resuming after cursorTok.
func (s *MessageService) ListMessages(ctx context.Context, conversationID uuid.UUID, principal domain.Principal, cursorTok string, limit int) ([]*domain.Message, error) {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	conv, err := scope.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, apperr.Storage("load conversation", err)
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation not found")
	}

	if err := permissions.AssertConversationAccess(ctx, scope.Participants(), conversationID, principal); err != nil {
		return nil, err
	}

	msgs, err := scope.Messages().ListMessages(ctx, conversationID, cursorTok, limit)
	if err != nil {
		return nil, apperr.Storage("list messages", err)
	}
	return msgs, nil
}
