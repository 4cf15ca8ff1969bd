package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/domain"
)

type readStateRepo struct {
	tx *sql.Tx
}

// UpsertLastRead is a blind upsert: the schema does not enforce that
// last_read_message_id only advances forward.
func (r *readStateRepo) UpsertLastRead(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64, lastMessageID uuid.UUID, now time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO read_state (conversation_id, kind, subject_id, last_read_message_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, kind, subject_id)
		DO UPDATE SET last_read_message_id = EXCLUDED.last_read_message_id, updated_at = EXCLUDED.updated_at`,
		conversationID.String(), string(kind), subjectID, lastMessageID.String(), now)
	return err
}
