package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/app/cursor"
	"github.com/shopmindai/chat-core/internal/domain"
)

type messageRepo struct {
	tx *sql.Tx
}

const messageCols = `id, conversation_id, sender_kind, sender_id, type, body, payload, client_msg_id, created_at`

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Message, error) {
	var m domain.Message
	var idStr, convIDStr, senderKind, typ, clientMsgIDStr string
	var body sql.NullString
	var payloadRaw []byte
	if err := row.Scan(&idStr, &convIDStr, &senderKind, &m.SenderID, &typ, &body, &payloadRaw, &clientMsgIDStr, &m.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if m.ConversationID, err = uuid.Parse(convIDStr); err != nil {
		return nil, err
	}
	if m.ClientMsgID, err = uuid.Parse(clientMsgIDStr); err != nil {
		return nil, err
	}
	m.SenderKind = domain.PrincipalKind(senderKind)
	m.Type = domain.MessageType(typ)
	if body.Valid {
		b := body.String
		m.Body = &b
	}
	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &m.Payload); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// CreateIfNotExists relies on the database-level unique constraint on
// (conversation_id, sender_kind, sender_id, client_msg_id) plus
// INSERT ... ON CONFLICT DO NOTHING RETURNING, rather than emulating
// idempotency with a read-then-write. On conflict the RETURNING clause
// yields no row, so we fall back to a SELECT of the pre-existing one.
func (r *messageRepo) CreateIfNotExists(ctx context.Context, m *domain.Message) (*domain.Message, bool, error) {
	var payloadRaw []byte
	if m.Payload != nil {
		var err error
		payloadRaw, err = json.Marshal(m.Payload)
		if err != nil {
			return nil, false, fmt.Errorf("marshal payload: %w", err)
		}
	}

	row := r.tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_kind, sender_id, type, body, payload, client_msg_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (conversation_id, sender_kind, sender_id, client_msg_id) DO NOTHING
		RETURNING `+messageCols,
		m.ID.String(), m.ConversationID.String(), string(m.SenderKind), m.SenderID, string(m.Type), m.Body, nullableJSON(payloadRaw), m.ClientMsgID.String(), m.CreatedAt)

	inserted, err := scanMessage(row)
	if err == nil {
		return inserted, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	existing, err := r.GetByClientMsgID(ctx, m.ConversationID, m.SenderKind, m.SenderID, m.ClientMsgID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("message conflict but no existing row found")
	}
	return existing, false, nil
}

func (r *messageRepo) GetByClientMsgID(ctx context.Context, conversationID uuid.UUID, senderKind domain.PrincipalKind, senderID int64, clientMsgID uuid.UUID) (*domain.Message, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1 AND sender_kind = $2 AND sender_id = $3 AND client_msg_id = $4`,
		conversationID.String(), string(senderKind), senderID, clientMsgID.String())
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages orders by (created_at asc, id asc) and resumes strictly
// after the decoded cursor.
func (r *messageRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, cursorTok string, limit int) ([]*domain.Message, error) {
	query := `SELECT ` + messageCols + ` FROM messages WHERE conversation_id = $1`
	args := []interface{}{conversationID.String()}

	if cursorTok != "" {
		ts, id, err := cursor.Decode(cursorTok)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		args = append(args, ts, id)
		query += fmt.Sprintf(` AND (created_at > $%d OR (created_at = $%d AND id > $%d))`, len(args)-1, len(args)-1, len(args))
	}
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += ` ORDER BY created_at ASC, id ASC LIMIT $` + fmt.Sprint(len(args))

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
