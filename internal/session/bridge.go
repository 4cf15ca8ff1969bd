package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/bus"
)

// Bridge is the process-local listener on the event bus that routes
// every incoming envelope to the session registry.
type Bridge struct {
	Registry *Registry
	Logger   *logrus.Logger
}

func NewBridge(registry *Registry, logger *logrus.Logger) *Bridge {
	return &Bridge{Registry: registry, Logger: logger}
}

// Handle is a bus.Handler: parse envelope, extract data.conversation_id,
// broadcast. Unparseable or missing conversation_id is dropped — the
// event is still durably recorded in the outbox, only live fan-out is
// skipped.
func (b *Bridge) Handle(_ context.Context, env *bus.Envelope) {
	raw, ok := env.Data["conversation_id"]
	if !ok {
		return
	}
	str, ok := raw.(string)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(str)
	if err != nil {
		b.Logger.WithField("component", "session.bridge").WithField("conversation_id", str).Debug("dropping event with unparseable conversation_id")
		return
	}
	b.Registry.BroadcastToConversation(conversationID, env.Event, env.Data)
}
