// Package ingress is the consumer-group reader that translates foreign
// domain events (order lifecycle, user status) into calls on the
// write-path services.
//
// This adapter uses segmentio/kafka-go's consumer group: Kafka groups
// are created implicitly by the broker on first join, so there is no
// explicit "create group" step to call (see DESIGN.md).
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/app/service"
	"github.com/shopmindai/chat-core/internal/domain"
)

var orderStatusLabels = map[string]string{
	"confirmed":  "Заказ подтверждён",
	"processing": "Заказ в обработке",
	"shipped":    "Заказ отправлен",
	"delivered":  "Заказ доставлен",
	"completed":  "Заказ завершён",
	"cancelled":  "Заказ отменён",
	"refunded":   "Возврат оформлен",
}

// event is the envelope shape on the leaf.events stream: a type
// discriminator plus a flat field map.
type event struct {
	Type   string                 `json:"event_type"`
	Fields map[string]interface{} `json:"fields"`
}

type Consumer struct {
	Reader       *kafka.Reader
	Conversation *service.ConversationService
	Message      *service.MessageService
	Logger       *logrus.Logger
}

func NewConsumer(brokers []string, topic, group string, conversation *service.ConversationService, message *service.MessageService, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group, // consumer-group semantics replace XGROUP CREATE
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{Reader: reader, Conversation: conversation, Message: message, Logger: logger}
}

// Run reads entries until ctx is cancelled. Ack (commit) happens only
// after successful handling; a handler error skips the commit so the
// broker redelivers. A read/transport error sleeps 5s and continues
// rather than exiting the process.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.Reader.Close()

	consumerName := fmt.Sprintf("consumer-%s", uuid.New().String()[:8])
	c.Logger.WithField("component", "ingress.consumer").WithField("consumer", consumerName).Info("leaf events consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.Logger.WithError(err).WithField("component", "ingress.consumer").Error("fetch failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		var ev event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.Logger.WithError(err).WithField("component", "ingress.consumer").Warn("malformed event, not acking")
			continue
		}

		if err := c.handle(ctx, ev); err != nil {
			c.Logger.WithError(err).WithFields(logrus.Fields{
				"component": "ingress.consumer",
				"event":     ev.Type,
			}).Error("handler failed, not acking for redelivery")
			continue
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			c.Logger.WithError(err).WithField("component", "ingress.consumer").Error("commit failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, ev event) error {
	switch ev.Type {
	case "order.created":
		return c.handleOrderCreated(ctx, ev.Fields)
	case "order.status_changed":
		return c.handleOrderStatusChanged(ctx, ev.Fields)
	case "user.blocked":
		c.Logger.WithField("component", "ingress.consumer").WithField("user_id", ev.Fields["user_id"]).Info("user blocked — reserved for future policy")
		return nil
	case "user.updated":
		c.Logger.WithField("component", "ingress.consumer").WithField("user_id", ev.Fields["user_id"]).Debug("user updated (no-op)")
		return nil
	default:
		c.Logger.WithField("component", "ingress.consumer").WithField("event", ev.Type).Debug("ignoring unknown event")
		return nil
	}
}

func (c *Consumer) handleOrderCreated(ctx context.Context, fields map[string]interface{}) error {
	userID, err := toInt64(fields["user_id"])
	if err != nil {
		return err
	}
	orderID, err := toInt64(fields["order_id"])
	if err != nil {
		return err
	}
	_, _, err = c.Conversation.OpenTopicConversation(ctx, "order", orderID, userID)
	return err
}

func (c *Consumer) handleOrderStatusChanged(ctx context.Context, fields map[string]interface{}) error {
	orderID, err := toInt64(fields["order_id"])
	if err != nil {
		return err
	}
	status, _ := fields["status"].(string)

	scope, err := c.Conversation.UoW.Begin(ctx)
	if err != nil {
		return err
	}
	open := domain.ConversationOpen
	conv, err := scope.Conversations().GetByTopic(ctx, "order", orderID, &open)
	_ = scope.Rollback(ctx)
	if err != nil {
		return err
	}
	if conv == nil {
		c.Logger.WithField("component", "ingress.consumer").WithField("order_id", orderID).Warn("no conversation for order, cannot notify")
		return nil
	}

	label, ok := orderStatusLabels[status]
	if !ok {
		label = fmt.Sprintf("Статус заказа: %s", status)
	}
	body := fmt.Sprintf("%s (#%d)", label, orderID)

	_, _, err = c.Message.SendMessage(ctx, conv.ID, domain.SystemPrincipal, uuid.New(), domain.MessageSystem, &body, nil)
	return err
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("ingress: expected numeric field, got %T", v)
	}
}
