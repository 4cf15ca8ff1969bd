package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/domain"
)

func newTestConversation(factory *fakeFactory, userID int64, now time.Time) *domain.Conversation {
	conv := domain.NewConversation("support", sql.NullInt64{}, now)
	factory.state.conversations[conv.ID] = conv
	factory.state.participants = append(factory.state.participants, domain.NewParticipant(conv.ID, domain.KindUser, userID, now))
	return conv
}

func TestSendMessage_FirstSendPersistsAndEnqueuesOutbox(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := newTestConversation(factory, 7, now)
	svc := NewMessageService(factory, fixedClock{t: now})
	principal := domain.Principal{Kind: domain.KindUser, SubjectID: 7}
	body := "hello"

	msg, created, err := svc.SendMessage(context.Background(), conv.ID, principal, uuid.New(), domain.MessageText, &body, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "hello", *msg.Body)
	assert.Len(t, factory.state.outbox, 1)
	assert.Equal(t, domain.EventMessageCreated, factory.state.outbox[0].EventType)
	assert.True(t, factory.state.conversations[conv.ID].LastMessageAt.Valid)
}

func TestSendMessage_DuplicateClientMsgIDIsIdempotent(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := newTestConversation(factory, 7, now)
	svc := NewMessageService(factory, fixedClock{t: now})
	principal := domain.Principal{Kind: domain.KindUser, SubjectID: 7}
	clientMsgID := uuid.New()
	body := "hello"

	first, created1, err := svc.SendMessage(context.Background(), conv.ID, principal, clientMsgID, domain.MessageText, &body, nil)
	require.NoError(t, err)
	require.True(t, created1)

	second, created2, err := svc.SendMessage(context.Background(), conv.ID, principal, clientMsgID, domain.MessageText, &body, nil)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, factory.state.outbox, 1, "retry must not enqueue a second outbox record")
}

func TestSendMessage_NonParticipantIsForbidden(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := newTestConversation(factory, 7, now)
	svc := NewMessageService(factory, fixedClock{t: now})
	stranger := domain.Principal{Kind: domain.KindUser, SubjectID: 999}
	body := "hi"

	_, _, err := svc.SendMessage(context.Background(), conv.ID, stranger, uuid.New(), domain.MessageText, &body, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSendMessage_UnknownConversationIsNotFound(t *testing.T) {
	factory := newFakeFactory()
	svc := NewMessageService(factory, fixedClock{t: time.Now()})
	principal := domain.Principal{Kind: domain.KindUser, SubjectID: 1}
	body := "hi"

	_, _, err := svc.SendMessage(context.Background(), uuid.New(), principal, uuid.New(), domain.MessageText, &body, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSendMessage_AdminBypassesParticipantCheck(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := newTestConversation(factory, 7, now)
	svc := NewMessageService(factory, fixedClock{t: now})
	admin := domain.Principal{Kind: domain.KindAdmin, SubjectID: 1}
	body := "how can I help?"

	_, created, err := svc.SendMessage(context.Background(), conv.ID, admin, uuid.New(), domain.MessageText, &body, nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestListMessages_OrdersByCreatedAtAscending(t *testing.T) {
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	factory := newFakeFactory()
	conv := newTestConversation(factory, 7, base)
	principal := domain.Principal{Kind: domain.KindUser, SubjectID: 7}

	svc := NewMessageService(factory, fixedClock{t: base})
	body1, body2 := "first", "second"
	_, _, err := svc.SendMessage(context.Background(), conv.ID, principal, uuid.New(), domain.MessageText, &body1, nil)
	require.NoError(t, err)

	svc2 := NewMessageService(factory, fixedClock{t: base.Add(time.Minute)})
	_, _, err = svc2.SendMessage(context.Background(), conv.ID, principal, uuid.New(), domain.MessageText, &body2, nil)
	require.NoError(t, err)

	msgs, err := svc.ListMessages(context.Background(), conv.ID, principal, "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", *msgs[0].Body)
	assert.Equal(t, "second", *msgs[1].Body)
}
