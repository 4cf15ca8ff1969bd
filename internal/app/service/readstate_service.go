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

// ReadStateService wraps MarkRead.
type ReadStateService struct {
	UoW   port.UnitOfWorkFactory
	Clock clock.Clock
}

func NewReadStateService(uow port.UnitOfWorkFactory, c clock.Clock) *ReadStateService {
	return &ReadStateService{UoW: uow, Clock: c}
}

// MarkRead authorises the caller then blindly upserts the read cursor.
// The schema does not enforce monotonicity (see DESIGN.md).
func (s *ReadStateService) MarkRead(ctx context.Context, conversationID uuid.UUID, principal domain.Principal, lastMessageID uuid.UUID) error {
	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	conv, err := scope.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return apperr.Storage("load conversation", err)
	}
	if conv == nil {
		return apperr.NotFound("conversation not found")
	}

	if err := permissions.AssertConversationAccess(ctx, scope.Participants(), conversationID, principal); err != nil {
		return err
	}

	now := s.Clock.Now()
	if err := scope.ReadStates().UpsertLastRead(ctx, conversationID, principal.Kind, principal.SubjectID, lastMessageID, now); err != nil {
		return apperr.Storage("upsert read state", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return apperr.Storage("commit", err)
	}
	return nil
}
