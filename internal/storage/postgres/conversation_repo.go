package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/app/cursor"
	"github.com/shopmindai/chat-core/internal/app/dto"
	"github.com/shopmindai/chat-core/internal/domain"
)

type conversationRepo struct {
	tx *sql.Tx
}

func scanConversation(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Conversation, error) {
	var c domain.Conversation
	var idStr string
	if err := row.Scan(&idStr, &c.TopicType, &c.TopicID, &c.Status, &c.AssigneeAdminID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

const conversationCols = `id, topic_type, topic_id, status, assignee_admin_id, last_message_at, created_at, updated_at`

func (r *conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+conversationCols+` FROM conversations WHERE id = $1`, id.String())
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conversationRepo) GetSupportForUser(ctx context.Context, userID int64) (*domain.Conversation, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT c.`+conversationCols+`
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE c.topic_type = 'support' AND c.status = 'open'
		  AND p.kind = 'user' AND p.subject_id = $1
		LIMIT 1`, userID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *conversationRepo) GetByTopic(ctx context.Context, topicType string, topicID int64, status *domain.ConversationStatus) (*domain.Conversation, error) {
	query := `SELECT ` + conversationCols + ` FROM conversations WHERE topic_type = $1 AND topic_id = $2`
	args := []interface{}{topicType, topicID}
	if status != nil {
		query += ` AND status = $3`
		args = append(args, string(*status))
	}
	query += ` LIMIT 1`
	row := r.tx.QueryRowContext(ctx, query, args...)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListForUser orders by (last_message_at desc nulls last, id asc) and
// resumes strictly after the decoded cursor.
func (r *conversationRepo) ListForUser(ctx context.Context, userID int64, cursorTok string, limit int) ([]*domain.Conversation, error) {
	query := `
		SELECT c.` + conversationCols + `
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.kind = 'user' AND p.subject_id = $1`
	args := []interface{}{userID}

	if cursorTok != "" {
		ts, id, err := cursor.Decode(cursorTok)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		query += fmt.Sprintf(`
		  AND (c.last_message_at < $%d OR (c.last_message_at = $%d AND c.id > $%d) OR (c.last_message_at IS NULL AND c.id > $%d))`,
			len(args)+1, len(args)+1, len(args)+2, len(args)+2)
		args = append(args, ts, id)
	}
	query += ` ORDER BY c.last_message_at DESC NULLS LAST, c.id ASC LIMIT $` + fmt.Sprint(len(args)+1)
	args = append(args, limit)

	return r.queryConversations(ctx, query, args...)
}

func (r *conversationRepo) ListForAdmin(ctx context.Context, filter dto.ConversationFilter) ([]*domain.Conversation, error) {
	query := `SELECT ` + conversationCols + ` FROM conversations WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.AssigneeAdminID != nil {
		args = append(args, *filter.AssigneeAdminID)
		query += fmt.Sprintf(` AND assignee_admin_id = $%d`, len(args))
	}
	if filter.Cursor != "" {
		ts, id, err := cursor.Decode(filter.Cursor)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		args = append(args, ts, id)
		query += fmt.Sprintf(` AND (last_message_at < $%d OR (last_message_at = $%d AND id > $%d) OR (last_message_at IS NULL AND id > $%d))`,
			len(args)-1, len(args)-1, len(args), len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	query += ` ORDER BY last_message_at DESC NULLS LAST, id ASC LIMIT $` + fmt.Sprint(len(args))

	return r.queryConversations(ctx, query, args...)
}

func (r *conversationRepo) queryConversations(ctx context.Context, query string, args ...interface{}) ([]*domain.Conversation, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *conversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO conversations (id, topic_type, topic_id, status, assignee_admin_id, last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID.String(), c.TopicType, c.TopicID, string(c.Status), c.AssigneeAdminID, c.LastMessageAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *conversationRepo) Assign(ctx context.Context, conversationID uuid.UUID, adminID int64) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE conversations SET assignee_admin_id = $1, updated_at = now() WHERE id = $2`,
		adminID, conversationID.String())
	return err
}

func (r *conversationRepo) Close(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE conversations SET status = 'closed', updated_at = now() WHERE id = $1`,
		conversationID.String())
	return err
}

func (r *conversationRepo) TouchLastMessageAt(ctx context.Context, conversationID uuid.UUID, ts time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = $1, updated_at = $1 WHERE id = $2`,
		ts, conversationID.String())
	return err
}
