package service

import (
	"database/sql"

	"context"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/clock"
	"github.com/shopmindai/chat-core/internal/domain"
)

// ConversationService wraps the conversation-opening and user-facing
// listing operations.
type ConversationService struct {
	UoW   port.UnitOfWorkFactory
	Clock clock.Clock
}

func NewConversationService(uow port.UnitOfWorkFactory, c clock.Clock) *ConversationService {
	return &ConversationService{UoW: uow, Clock: c}
}

// OpenSupportConversation returns the user's existing open support
// conversation if one exists, else creates one, adds the user as a
// participant, and appends a chat.conversation_created outbox record.
func (s *ConversationService) OpenSupportConversation(ctx context.Context, userID int64) (*domain.Conversation, bool, error) {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, false, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	existing, err := scope.Conversations().GetSupportForUser(ctx, userID)
	if err != nil {
		return nil, false, apperr.Storage("lookup support conversation", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.Clock.Now()
	conv := domain.NewConversation("support", sql.NullInt64{}, now)
	if err := scope.Conversations().Create(ctx, conv); err != nil {
		return nil, false, apperr.Storage("create conversation", err)
	}
	p := domain.NewParticipant(conv.ID, domain.KindUser, userID, now)
	if err := scope.Participants().Add(ctx, p); err != nil {
		return nil, false, apperr.Storage("add participant", err)
	}
	if err := scope.Outbox().Add(ctx, domain.EventConversationCreated, map[string]interface{}{
		"conversation_id": conv.ID.String(),
		"user_id":         userID,
		"topic_type":      conv.TopicType,
	}); err != nil {
		return nil, false, apperr.Storage("append outbox", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, false, apperr.Storage("commit", err)
	}
	return conv, true, nil
}

// OpenTopicConversation is the same pattern as OpenSupportConversation,
// keyed by (topic_type, topic_id, status=open).
func (s *ConversationService) OpenTopicConversation(ctx context.Context, topicType string, topicID int64, userID int64) (*domain.Conversation, bool, error) {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, false, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	open := domain.ConversationOpen
	existing, err := scope.Conversations().GetByTopic(ctx, topicType, topicID, &open)
	if err != nil {
		return nil, false, apperr.Storage("lookup topic conversation", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.Clock.Now()
	conv := domain.NewConversation(topicType, sql.NullInt64{Int64: topicID, Valid: true}, now)
	if err := scope.Conversations().Create(ctx, conv); err != nil {
		return nil, false, apperr.Storage("create conversation", err)
	}
	p := domain.NewParticipant(conv.ID, domain.KindUser, userID, now)
	if err := scope.Participants().Add(ctx, p); err != nil {
		return nil, false, apperr.Storage("add participant", err)
	}
	if err := scope.Outbox().Add(ctx, domain.EventConversationCreated, map[string]interface{}{
		"conversation_id": conv.ID.String(),
		"user_id":         userID,
		"topic_type":      topicType,
		"topic_id":        topicID,
	}); err != nil {
		return nil, false, apperr.Storage("append outbox", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, false, apperr.Storage("commit", err)
	}
	return conv, true, nil
}

// ListConversations returns the user's conversations ordered by
// (last_message_at desc nulls last, id asc).
func (s *ConversationService) ListConversations(ctx context.Context, userID int64, cursorTok string, limit int) ([]*domain.Conversation, error) {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	convs, err := scope.Conversations().ListForUser(ctx, userID, cursorTok, limit)
	if err != nil {
		return nil, apperr.Storage("list conversations", err)
	}
	return convs, nil
}
