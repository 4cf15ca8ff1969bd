package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/shopmindai/chat-core/internal/domain"
)

type outboxRepo struct {
	tx *sql.Tx
}

func (r *outboxRepo) Add(ctx context.Context, eventType string, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (event_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)`,
		eventType, raw, string(domain.OutboxPending), now)
	return err
}

// FetchPending claims up to batchSize pending/failed rows whose retry
// deadline has passed, using SELECT ... FOR UPDATE SKIP LOCKED so
// concurrent dispatcher replicas never double-claim a row. Claimed rows
// are transitioned to processing within the same transaction as the
// caller's scope.
func (r *outboxRepo) FetchPending(ctx context.Context, batchSize int) ([]*domain.OutboxRecord, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, event_type, payload, status, attempts, next_retry_at, created_at, updated_at
		FROM outbox_messages
		WHERE status IN ('pending', 'failed')
		  AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, err
	}

	var out []*domain.OutboxRecord
	var ids []int64
	for rows.Next() {
		var rec domain.OutboxRecord
		var status string
		var payloadRaw []byte
		if err := rows.Scan(&rec.ID, &rec.EventType, &payloadRaw, &status, &rec.Attempts, &rec.NextRetryAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Status = domain.OutboxStatus(status)
		if len(payloadRaw) > 0 {
			if err := json.Unmarshal(payloadRaw, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
		}
		out = append(out, &rec)
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return out, nil
	}
	if _, err := r.tx.ExecContext(ctx, `
		UPDATE outbox_messages SET status = 'processing', updated_at = now() WHERE id = ANY($1)`,
		pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, rec := range out {
		rec.Status = domain.OutboxProcessing
	}
	return out, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.ExecContext(ctx, `
		UPDATE outbox_messages SET status = 'sent', updated_at = now() WHERE id = ANY($1)`,
		pq.Array(ids))
	return err
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id int64, nextRetryAt time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = 'failed', attempts = attempts + 1, next_retry_at = $1, updated_at = now()
		WHERE id = $2`,
		nextRetryAt, id)
	return err
}
