//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopmindai/chat-core/internal/domain"
)

// startPostgres boots a throwaway container and applies Schema, mirroring
// how the original stack's pytest fixtures reset the schema per test run.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("chatcore_test"),
		tcpostgres.WithUsername("chatcore"),
		tcpostgres.WithPassword("chatcore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDB(dsn, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}

func TestIntegration_MessageCreateIfNotExistsIsIdempotentOnRetry(t *testing.T) {
	db := startPostgres(t)
	factory := NewFactory(db)
	ctx := context.Background()
	now := time.Now().UTC()

	scope, err := factory.Begin(ctx)
	require.NoError(t, err)
	conv := domain.NewConversation("support", sql.NullInt64{}, now)
	require.NoError(t, scope.Conversations().Create(ctx, conv))
	require.NoError(t, scope.Commit(ctx))

	clientMsgID := uuid.New()
	body := "hello"

	insertOnce := func() (*domain.Message, bool) {
		s, err := factory.Begin(ctx)
		require.NoError(t, err)
		defer s.Rollback(ctx)
		m := domain.NewMessage(conv.ID, domain.KindUser, 1, clientMsgID, domain.MessageText, &body, nil, now)
		got, inserted, err := s.Messages().CreateIfNotExists(ctx, m)
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx))
		return got, inserted
	}

	first, firstInserted := insertOnce()
	second, secondInserted := insertOnce()

	require.True(t, firstInserted)
	require.False(t, secondInserted)
	require.Equal(t, first.ID, second.ID, "retry must resolve to the original row, not a duplicate")

	s, err := factory.Begin(ctx)
	require.NoError(t, err)
	defer s.Rollback(ctx)
	all, err := s.Messages().ListMessages(ctx, conv.ID, "", 50)
	require.NoError(t, err)
	require.Len(t, all, 1, "the unique constraint must prevent a second row from ever existing")
}


func TestIntegration_OutboxFetchPendingSkipsRowsLockedByAnotherTransaction(t *testing.T) {
	db := startPostgres(t)
	factory := NewFactory(db)
	ctx := context.Background()

	seed, err := factory.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.Outbox().Add(ctx, domain.EventMessageCreated, map[string]interface{}{"k": "v"}))
	require.NoError(t, seed.Commit(ctx))

	holder, err := factory.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	claimed, err := holder.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "the row must be claimed by the first transaction")

	other, err := factory.Begin(ctx)
	require.NoError(t, err)
	defer other.Rollback(ctx)
	second, err := other.Outbox().FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, second, "SKIP LOCKED must hide the row still held by holder's open transaction")
}
