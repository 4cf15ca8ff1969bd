// Package outbox is the background dispatcher that decouples
// transactional state changes from bus publication: it polls the
// outbox table, publishes each pending record, and marks it sent or
// schedules a backoff retry.
package outbox

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/domain"
)

// Publisher is the subset of bus.Publisher the dispatcher needs, kept as
// a narrow interface so unit tests can inject a failing fake.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{}) error
}

const (
	backoffBase = 5 * time.Second
	backoffMax  = 300 * time.Second
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

func DefaultConfig() Config {
	return Config{PollInterval: time.Second, BatchSize: 50, MaxAttempts: 5}
}

// Dispatcher runs the poll/claim/publish/ack loop. Multiple replicas may
// run concurrently against the same database; FetchPending's
// SELECT ... FOR UPDATE SKIP LOCKED prevents double claims.
type Dispatcher struct {
	UoW       port.UnitOfWorkFactory
	Publisher Publisher
	Config    Config
	Logger    *logrus.Logger
}

func New(uow port.UnitOfWorkFactory, publisher Publisher, cfg Config, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{UoW: uow, Publisher: publisher, Config: cfg, Logger: logger}
}

// Run blocks, polling every Config.PollInterval until ctx is cancelled.
// On cancel it finishes the in-flight batch, then returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Config.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.runOnce(ctx); err != nil {
			d.Logger.WithError(err).WithField("component", "outbox.dispatcher").Error("batch failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) runOnce(ctx context.Context) error {
	scope, err := d.UoW.Begin(ctx)
	if err != nil {
		return err
	}
	defer scope.Rollback(ctx)

	records, err := scope.Outbox().FetchPending(ctx, d.Config.BatchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return scope.Commit(ctx)
	}

	var sentIDs []int64
	for _, rec := range records {
		if rec.Attempts >= d.Config.MaxAttempts {
			PoisonedTotal.Inc()
			d.Logger.WithFields(logrus.Fields{
				"component": "outbox.dispatcher",
				"record_id": rec.ID,
				"attempts":  rec.Attempts,
			}).Error("record exceeded max attempts, left in processing for triage")
			continue
		}

		payload := envelopePayload(rec)
		if err := d.Publisher.Publish(ctx, rec.EventType, payload); err != nil {
			DispatchFailuresTotal.Inc()
			backoff := nextBackoff(rec.Attempts)
			if markErr := scope.Outbox().MarkFailed(ctx, rec.ID, time.Now().UTC().Add(backoff)); markErr != nil {
				return markErr
			}
			d.Logger.WithError(err).WithFields(logrus.Fields{
				"component": "outbox.dispatcher",
				"record_id": rec.ID,
			}).Warn("publish failed, scheduled retry")
			continue
		}

		DispatchTotal.Inc()
		sentIDs = append(sentIDs, rec.ID)
	}

	if len(sentIDs) > 0 {
		if err := scope.Outbox().MarkSent(ctx, sentIDs); err != nil {
			return err
		}
	}
	return scope.Commit(ctx)
}

// envelopePayload builds the bus payload: the stored payload plus
// event_type, unknown keys forwarded verbatim.
func envelopePayload(rec *domain.OutboxRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(rec.Payload)+1)
	for k, v := range rec.Payload {
		out[k] = v
	}
	out["event_type"] = rec.EventType
	return out
}

func nextBackoff(attempts int) time.Duration {
	d := backoffBase * time.Duration(1<<uint(attempts))
	if d > backoffMax {
		return backoffMax
	}
	return d
}
