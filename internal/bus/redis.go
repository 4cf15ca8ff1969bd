package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/apperr"
)

// Publisher publishes already-committed events to the bus channel. One
// long-lived instance per process.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]interface{}) error {
	raw, err := Marshal(eventType, data)
	if err != nil {
		return apperr.Bus("marshal envelope", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return apperr.Bus("publish", err)
	}
	return nil
}

// Handler processes one decoded envelope. It returns nothing; a panic in
// a handler is recovered and logged so one bad message never kills the
// subscriber loop.
type Handler func(ctx context.Context, env *Envelope)

// Subscriber runs one subscription per process from process startup
// until Close, dispatching every envelope to Handler.
type Subscriber struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
	pubsub  *redis.PubSub
}

func NewSubscriber(client *redis.Client, channel string, logger *logrus.Logger) *Subscriber {
	return &Subscriber{client: client, channel: channel, logger: logger}
}

// Run blocks, delivering envelopes to handle until ctx is cancelled or
// the underlying connection is closed.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	s.pubsub = s.client.Subscribe(ctx, s.channel)
	defer s.pubsub.Close()

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := Unmarshal([]byte(msg.Payload))
			if err != nil {
				s.logger.WithError(err).WithField("component", "bus.subscriber").Warn("dropping unparseable bus envelope")
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.WithField("component", "bus.subscriber").WithField("panic", r).Error("handler panicked")
					}
				}()
				handle(ctx, env)
			}()
		}
	}
}

func (s *Subscriber) Close() error {
	if s.pubsub == nil {
		return nil
	}
	return s.pubsub.Close()
}
