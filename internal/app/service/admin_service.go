package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/app/dto"
	"github.com/shopmindai/chat-core/internal/app/permissions"
	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/clock"
	"github.com/shopmindai/chat-core/internal/domain"
)

// AdminService wraps the admin-only operations: assigning a
// conversation, closing it, and listing across all conversations.
type AdminService struct {
	UoW   port.UnitOfWorkFactory
	Clock clock.Clock
}

func NewAdminService(uow port.UnitOfWorkFactory, c clock.Clock) *AdminService {
	return &AdminService{UoW: uow, Clock: c}
}

// AssignConversation sets the assignee, ensures an admin participant row
// exists, and posts a system message announcing the assignment.
func (s *AdminService) AssignConversation(ctx context.Context, conversationID uuid.UUID, adminID int64, caller domain.Principal) (*domain.Conversation, error) {
	if err := permissions.AssertAdmin(caller); err != nil {
		return nil, err
	}

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

	if err := scope.Conversations().Assign(ctx, conversationID, adminID); err != nil {
		return nil, apperr.Storage("assign conversation", err)
	}

	now := s.Clock.Now()
	isParticipant, err := scope.Participants().IsParticipant(ctx, conversationID, domain.KindAdmin, adminID)
	if err != nil {
		return nil, apperr.Storage("check admin participant", err)
	}
	if !isParticipant {
		if err := scope.Participants().Add(ctx, domain.NewParticipant(conversationID, domain.KindAdmin, adminID, now)); err != nil {
			return nil, apperr.Storage("add admin participant", err)
		}
	}

	body := fmt.Sprintf("Admin %d assigned", adminID)
	sysMsg := domain.NewMessage(conversationID, domain.KindAdmin, 0, uuid.New(), domain.MessageSystem, &body, map[string]interface{}{
		"action":   "assigned",
		"admin_id": adminID,
	}, now)
	if _, _, err := scope.Messages().CreateIfNotExists(ctx, sysMsg); err != nil {
		return nil, apperr.Storage("insert system message", err)
	}
	if err := scope.Conversations().TouchLastMessageAt(ctx, conversationID, now); err != nil {
		return nil, apperr.Storage("touch last_message_at", err)
	}

	if err := scope.Outbox().Add(ctx, domain.EventConversationUpdated, map[string]interface{}{
		"conversation_id":   conversationID.String(),
		"action":            "assigned",
		"assignee_admin_id": adminID,
		"status":            string(conv.Status),
	}); err != nil {
		return nil, apperr.Storage("append outbox", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, apperr.Storage("commit", err)
	}

	conv.AssigneeAdminID.Int64, conv.AssigneeAdminID.Valid = adminID, true
	return conv, nil
}

// CloseConversation sets status=closed and posts a system message.
func (s *AdminService) CloseConversation(ctx context.Context, conversationID uuid.UUID, caller domain.Principal) (*domain.Conversation, error) {
	if err := permissions.AssertAdmin(caller); err != nil {
		return nil, err
	}

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

	if err := scope.Conversations().Close(ctx, conversationID); err != nil {
		return nil, apperr.Storage("close conversation", err)
	}

	now := s.Clock.Now()
	body := "Conversation closed"
	sysMsg := domain.NewMessage(conversationID, caller.Kind, caller.SubjectID, uuid.New(), domain.MessageSystem, &body, map[string]interface{}{
		"action": "closed",
	}, now)
	if _, _, err := scope.Messages().CreateIfNotExists(ctx, sysMsg); err != nil {
		return nil, apperr.Storage("insert system message", err)
	}
	if err := scope.Conversations().TouchLastMessageAt(ctx, conversationID, now); err != nil {
		return nil, apperr.Storage("touch last_message_at", err)
	}

	if err := scope.Outbox().Add(ctx, domain.EventConversationUpdated, map[string]interface{}{
		"conversation_id": conversationID.String(),
		"action":          "closed",
		"status":          string(domain.ConversationClosed),
	}); err != nil {
		return nil, apperr.Storage("append outbox", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, apperr.Storage("commit", err)
	}

	conv.Status = domain.ConversationClosed
	return conv, nil
}

// ListConversations returns admin-visible conversations filtered per
// dto.ConversationFilter.
func (s *AdminService) ListConversations(ctx context.Context, caller domain.Principal, filter dto.ConversationFilter) ([]*domain.Conversation, error) {
	if err := permissions.AssertAdmin(caller); err != nil {
		return nil, err
	}

	scope, err := s.UoW.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin scope", err)
	}
	defer scope.Rollback(ctx)

	convs, err := scope.Conversations().ListForAdmin(ctx, filter)
	if err != nil {
		return nil, apperr.Storage("list conversations", err)
	}
	return convs, nil
}
