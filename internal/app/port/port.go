// Package port declares the storage contracts the write-path services
// depend on. The concrete adapter lives in internal/storage/postgres;
// services
// are unit-tested against in-memory fakes implementing these interfaces
// (see internal/app/service's *_test.go files).
package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/app/dto"
	"github.com/shopmindai/chat-core/internal/domain"
)

type ConversationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetSupportForUser(ctx context.Context, userID int64) (*domain.Conversation, error)
	GetByTopic(ctx context.Context, topicType string, topicID int64, status *domain.ConversationStatus) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID int64, cursorTok string, limit int) ([]*domain.Conversation, error)
	ListForAdmin(ctx context.Context, filter dto.ConversationFilter) ([]*domain.Conversation, error)
}

type ConversationWriter interface {
	Create(ctx context.Context, c *domain.Conversation) error
	Assign(ctx context.Context, conversationID uuid.UUID, adminID int64) error
	Close(ctx context.Context, conversationID uuid.UUID) error
	TouchLastMessageAt(ctx context.Context, conversationID uuid.UUID, ts time.Time) error
}

type ParticipantReader interface {
	IsParticipant(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64) (bool, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error)
}

type ParticipantWriter interface {
	Add(ctx context.Context, p *domain.Participant) error
}

type MessageReader interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID, cursorTok string, limit int) ([]*domain.Message, error)
	GetByClientMsgID(ctx context.Context, conversationID uuid.UUID, senderKind domain.PrincipalKind, senderID int64, clientMsgID uuid.UUID) (*domain.Message, error)
}

type MessageWriter interface {
	// CreateIfNotExists inserts m. On idempotency-key conflict it returns
	// the pre-existing row and created=false instead of erroring.
	CreateIfNotExists(ctx context.Context, m *domain.Message) (msg *domain.Message, created bool, err error)
}

type ReadStateWriter interface {
	UpsertLastRead(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64, lastMessageID uuid.UUID, now time.Time) error
}

type OutboxWriter interface {
	Add(ctx context.Context, eventType string, payload map[string]interface{}) error
	FetchPending(ctx context.Context, batchSize int) ([]*domain.OutboxRecord, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time) error
}

// UnitOfWork is a per-request transactional scope exposing every facet
// the write-path services need. It commits or rolls back as a unit.
type UnitOfWork interface {
	Conversations() interface {
		ConversationReader
		ConversationWriter
	}
	Participants() interface {
		ParticipantReader
		ParticipantWriter
	}
	Messages() interface {
		MessageReader
		MessageWriter
	}
	ReadStates() ReadStateWriter
	Outbox() OutboxWriter

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens a new transactional scope. Storage adapters
// implement this; services receive it via constructor injection.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
