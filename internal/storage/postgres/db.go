// Package postgres is the concrete storage adapter for the ports in
// internal/app/port: database/sql over lib/pq, with pool tuning and the
// queries and constraints each repository relies on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig controls connection pool sizing, exposed via
// DB_MAX_OPEN_CONNS/DB_MAX_IDLE_CONNS rather than hardcoded constants.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    100,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// NewDB opens the connection pool and verifies connectivity.
func NewDB(dsn string, cfg PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the logical table layout, applied by the external migration
// tooling this module deliberately does not own (see DESIGN.md). Kept
// here as the authoritative reference for tests that spin up a
// throwaway container.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id                 UUID PRIMARY KEY,
	topic_type         TEXT NOT NULL,
	topic_id           BIGINT,
	status             TEXT NOT NULL,
	assignee_admin_id  BIGINT,
	last_message_at    TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_status_last_msg ON conversations (status, last_message_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_topic ON conversations (topic_type, topic_id);

CREATE TABLE IF NOT EXISTS participants (
	conversation_id UUID NOT NULL,
	kind            TEXT NOT NULL,
	subject_id      BIGINT NOT NULL,
	joined_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (conversation_id, kind, subject_id)
);
CREATE INDEX IF NOT EXISTS idx_participants_subject ON participants (kind, subject_id, conversation_id);

CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	conversation_id UUID NOT NULL,
	sender_kind     TEXT NOT NULL,
	sender_id       BIGINT NOT NULL,
	type            TEXT NOT NULL,
	body            TEXT,
	payload         JSONB,
	client_msg_id   UUID NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (conversation_id, sender_kind, sender_id, client_msg_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_conv_order ON messages (conversation_id, created_at, id);

CREATE TABLE IF NOT EXISTS read_state (
	conversation_id       UUID NOT NULL,
	kind                  TEXT NOT NULL,
	subject_id            BIGINT NOT NULL,
	last_read_message_id  UUID,
	updated_at            TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (conversation_id, kind, subject_id)
);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id            BIGSERIAL PRIMARY KEY,
	event_type    TEXT NOT NULL,
	payload       JSONB NOT NULL,
	status        TEXT NOT NULL,
	attempts      INT NOT NULL DEFAULT 0,
	next_retry_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_dispatch ON outbox_messages (status, next_retry_at, created_at);
`
