package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique_violation.
const uniqueViolation = "23505"

type participantRepo struct {
	tx *sql.Tx
}

func (r *participantRepo) IsParticipant(ctx context.Context, conversationID uuid.UUID, kind domain.PrincipalKind, subjectID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM participants WHERE conversation_id = $1 AND kind = $2 AND subject_id = $3)`,
		conversationID.String(), string(kind), subjectID).Scan(&exists)
	return exists, err
}

func (r *participantRepo) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT conversation_id, kind, subject_id, joined_at FROM participants WHERE conversation_id = $1`,
		conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		var p domain.Participant
		var convIDStr, kindStr string
		if err := rows.Scan(&convIDStr, &kindStr, &p.SubjectID, &p.JoinedAt); err != nil {
			return nil, err
		}
		convID, err := uuid.Parse(convIDStr)
		if err != nil {
			return nil, err
		}
		p.ConversationID = convID
		p.Kind = domain.PrincipalKind(kindStr)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Add inserts a participant row. The write-path services only call Add
// after confirming the row is absent, but a concurrent caller can still
// race this insert against the unique constraint on (conversation_id,
// kind, subject_id); that race surfaces as apperr.Conflict rather than
// being silently absorbed.
func (r *participantRepo) Add(ctx context.Context, p *domain.Participant) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO participants (conversation_id, kind, subject_id, joined_at)
		VALUES ($1, $2, $3, $4)`,
		p.ConversationID.String(), string(p.Kind), p.SubjectID, p.JoinedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperr.Conflict("participant already added to conversation")
		}
		return err
	}
	return nil
}
