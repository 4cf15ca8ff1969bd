package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/app/dto"
	"github.com/shopmindai/chat-core/internal/domain"
)

func seedConversation(factory *fakeFactory, now time.Time) *domain.Conversation {
	conv := domain.NewConversation("support", sql.NullInt64{}, now)
	factory.state.conversations[conv.ID] = conv
	return conv
}

func TestAssignConversation_SetsAssigneeAndAddsParticipant(t *testing.T) {
	now := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := seedConversation(factory, now)
	svc := NewAdminService(factory, fixedClock{t: now})
	caller := domain.Principal{Kind: domain.KindAdmin, SubjectID: 1}

	updated, err := svc.AssignConversation(context.Background(), conv.ID, 5, caller)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.AssigneeAdminID.Int64)

	isParticipant, err := (&fakeParticipants{state: factory.state}).IsParticipant(context.Background(), conv.ID, domain.KindAdmin, 5)
	require.NoError(t, err)
	assert.True(t, isParticipant)

	require.Len(t, factory.state.outbox, 1)
	assert.Equal(t, domain.EventConversationUpdated, factory.state.outbox[0].EventType)
}

func TestAssignConversation_RejectsNonAdminCaller(t *testing.T) {
	now := time.Now()
	factory := newFakeFactory()
	conv := seedConversation(factory, now)
	svc := NewAdminService(factory, fixedClock{t: now})
	caller := domain.Principal{Kind: domain.KindUser, SubjectID: 1}

	_, err := svc.AssignConversation(context.Background(), conv.ID, 5, caller)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCloseConversation_SetsStatusClosed(t *testing.T) {
	now := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := seedConversation(factory, now)
	svc := NewAdminService(factory, fixedClock{t: now})
	caller := domain.Principal{Kind: domain.KindAdmin, SubjectID: 1}

	closed, err := svc.CloseConversation(context.Background(), conv.ID, caller)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationClosed, closed.Status)
	assert.False(t, factory.state.conversations[conv.ID].IsOpen())
}

func TestAdminListConversations_FiltersByStatus(t *testing.T) {
	now := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	open := seedConversation(factory, now)
	closed := seedConversation(factory, now)
	factory.state.conversations[closed.ID].Status = domain.ConversationClosed

	svc := NewAdminService(factory, fixedClock{t: now})
	caller := domain.Principal{Kind: domain.KindAdmin, SubjectID: 1}

	convs, err := svc.ListConversations(context.Background(), caller, dto.ConversationFilter{Status: "open"})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, open.ID, convs[0].ID)
}
