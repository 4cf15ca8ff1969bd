package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/app/dto"
	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/domain"
)

// fakeState is the shared in-memory backing store for one test's
// UnitOfWorkFactory. Operations mutate it directly (no snapshot/undo on
// Rollback); transactional isolation is covered against real Postgres
// in internal/storage/postgres.
type fakeState struct {
	conversations map[uuid.UUID]*domain.Conversation
	participants  []*domain.Participant
	messagesByKey map[string]*domain.Message
	readStates    map[string]*domain.ReadState
	outbox        []*domain.OutboxRecord
	nextOutboxID  int64
}

func newFakeState() *fakeState {
	return &fakeState{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messagesByKey: make(map[string]*domain.Message),
		readStates:    make(map[string]*domain.ReadState),
	}
}

func messageKey(conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64, clientMsgID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%d|%s", conversationID, kind, subjectID, clientMsgID)
}

func readStateKey(conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64) string {
	return fmt.Sprintf("%s|%s|%d", conversationID, kind, subjectID)
}

type fakeFactory struct {
	state *fakeState
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{state: newFakeState()}
}

func (f *fakeFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	return &fakeUoW{state: f.state}, nil
}

type fakeUoW struct {
	state *fakeState
}

func (u *fakeUoW) Conversations() interface {
	port.ConversationReader
	port.ConversationWriter
} {
	return &fakeConversations{state: u.state}
}

func (u *fakeUoW) Participants() interface {
	port.ParticipantReader
	port.ParticipantWriter
} {
	return &fakeParticipants{state: u.state}
}

func (u *fakeUoW) Messages() interface {
	port.MessageReader
	port.MessageWriter
} {
	return &fakeMessages{state: u.state}
}

func (u *fakeUoW) ReadStates() port.ReadStateWriter { return &fakeReadStates{state: u.state} }
func (u *fakeUoW) Outbox() port.OutboxWriter        { return &fakeOutbox{state: u.state} }

func (u *fakeUoW) Commit(ctx context.Context) error   { return nil }
func (u *fakeUoW) Rollback(ctx context.Context) error { return nil }

type fakeConversations struct{ state *fakeState }

func (f *fakeConversations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return f.state.conversations[id], nil
}

func (f *fakeConversations) GetSupportForUser(ctx context.Context, userID int64) (*domain.Conversation, error) {
	for _, c := range f.state.conversations {
		if c.TopicType != "support" || !c.IsOpen() {
			continue
		}
		for _, p := range f.state.participants {
			if p.ConversationID == c.ID && p.Kind == domain.KindUser && p.SubjectID == userID {
				return c, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeConversations) GetByTopic(ctx context.Context, topicType string, topicID int64, status *domain.ConversationStatus) (*domain.Conversation, error) {
	for _, c := range f.state.conversations {
		if c.TopicType != topicType || !c.TopicID.Valid || c.TopicID.Int64 != topicID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		return c, nil
	}
	return nil, nil
}

func (f *fakeConversations) ListForUser(ctx context.Context, userID int64, cursorTok string, limit int) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, c := range f.state.conversations {
		for _, p := range f.state.participants {
			if p.ConversationID == c.ID && p.Kind == domain.KindUser && p.SubjectID == userID {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConversations) ListForAdmin(ctx context.Context, filter dto.ConversationFilter) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, c := range f.state.conversations {
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		if filter.AssigneeAdminID != nil && (!c.AssigneeAdminID.Valid || c.AssigneeAdminID.Int64 != *filter.AssigneeAdminID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeConversations) Create(ctx context.Context, c *domain.Conversation) error {
	f.state.conversations[c.ID] = c
	return nil
}

func (f *fakeConversations) Assign(ctx context.Context, conversationID uuid.UUID, adminID int64) error {
	c, ok := f.state.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation not found")
	}
	c.AssigneeAdminID.Int64, c.AssigneeAdminID.Valid = adminID, true
	return nil
}

func (f *fakeConversations) Close(ctx context.Context, conversationID uuid.UUID) error {
	c, ok := f.state.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation not found")
	}
	c.Status = domain.ConversationClosed
	return nil
}

func (f *fakeConversations) TouchLastMessageAt(ctx context.Context, conversationID uuid.UUID, ts time.Time) error {
	c, ok := f.state.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation not found")
	}
	c.LastMessageAt.Time, c.LastMessageAt.Valid = ts, true
	return nil
}

type fakeParticipants struct{ state *fakeState }

func (f *fakeParticipants) IsParticipant(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64) (bool, error) {
	for _, p := range f.state.participants {
		if p.ConversationID == conversationID && p.Kind == kind && p.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeParticipants) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error) {
	var out []*domain.Participant
	for _, p := range f.state.participants {
		if p.ConversationID == conversationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParticipants) Add(ctx context.Context, p *domain.Participant) error {
	f.state.participants = append(f.state.participants, p)
	return nil
}

type fakeMessages struct{ state *fakeState }

func (f *fakeMessages) ListMessages(ctx context.Context, conversationID uuid.UUID, cursorTok string, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range f.state.messagesByKey {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) GetByClientMsgID(ctx context.Context, conversationID uuid.UUID, senderKind domain.PrincipalKind, senderID int64, clientMsgID uuid.UUID) (*domain.Message, error) {
	return f.state.messagesByKey[messageKey(conversationID, senderKind, senderID, clientMsgID)], nil
}

func (f *fakeMessages) CreateIfNotExists(ctx context.Context, m *domain.Message) (*domain.Message, bool, error) {
	key := messageKey(m.ConversationID, m.SenderKind, m.SenderID, m.ClientMsgID)
	if existing, ok := f.state.messagesByKey[key]; ok {
		return existing, false, nil
	}
	f.state.messagesByKey[key] = m
	return m, true, nil
}

type fakeReadStates struct{ state *fakeState }

func (f *fakeReadStates) UpsertLastRead(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64, lastMessageID uuid.UUID, now time.Time) error {
	key := readStateKey(conversationID, kind, subjectID)
	f.state.readStates[key] = &domain.ReadState{
		ConversationID:    conversationID,
		Kind:              kind,
		SubjectID:         subjectID,
		LastReadMessageID: uuid.NullUUID{UUID: lastMessageID, Valid: true},
		UpdatedAt:         now,
	}
	return nil
}

type fakeOutbox struct{ state *fakeState }

func (f *fakeOutbox) Add(ctx context.Context, eventType string, payload map[string]interface{}) error {
	f.state.nextOutboxID++
	f.state.outbox = append(f.state.outbox, &domain.OutboxRecord{
		ID:        f.state.nextOutboxID,
		EventType: eventType,
		Payload:   payload,
		Status:    domain.OutboxPending,
	})
	return nil
}

func (f *fakeOutbox) FetchPending(ctx context.Context, batchSize int) ([]*domain.OutboxRecord, error) {
	var out []*domain.OutboxRecord
	for _, r := range f.state.outbox {
		if r.Status == domain.OutboxPending {
			out = append(out, r)
			if len(out) >= batchSize {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, ids []int64) error {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, r := range f.state.outbox {
		if _, ok := set[r.ID]; ok {
			r.Status = domain.OutboxSent
		}
	}
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time) error {
	for _, r := range f.state.outbox {
		if r.ID == id {
			r.Status = domain.OutboxFailed
			r.Attempts++
			r.NextRetryAt = sql.NullTime{Time: nextRetryAt, Valid: true}
		}
	}
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
