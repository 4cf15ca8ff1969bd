package postgres

import (
	"context"
	"database/sql"

	"github.com/shopmindai/chat-core/internal/app/port"
)

// Factory opens a new UnitOfWork per request.
type Factory struct {
	DB *sql.DB
}

func NewFactory(db *sql.DB) *Factory { return &Factory{DB: db} }

func (f *Factory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		tx:           tx,
		conversation: &conversationRepo{tx: tx},
		participant:  &participantRepo{tx: tx},
		message:      &messageRepo{tx: tx},
		readState:    &readStateRepo{tx: tx},
		outbox:       &outboxRepo{tx: tx},
	}, nil
}

type unitOfWork struct {
	tx   *sql.Tx
	done bool

	conversation *conversationRepo
	participant  *participantRepo
	message      *messageRepo
	readState    *readStateRepo
	outbox       *outboxRepo
}

func (u *unitOfWork) Conversations() interface {
	port.ConversationReader
	port.ConversationWriter
} {
	return u.conversation
}

func (u *unitOfWork) Participants() interface {
	port.ParticipantReader
	port.ParticipantWriter
} {
	return u.participant
}

func (u *unitOfWork) Messages() interface {
	port.MessageReader
	port.MessageWriter
} {
	return u.message
}

func (u *unitOfWork) ReadStates() port.ReadStateWriter { return u.readState }
func (u *unitOfWork) Outbox() port.OutboxWriter        { return u.outbox }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Commit()
}

// Rollback is safe to call after a successful Commit (the services defer
// it unconditionally); rolling back an already-committed tx is a no-op.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
