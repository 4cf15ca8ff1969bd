package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/shopmindai/chat-core/internal/bus"
)

func TestBridgeHandle_BroadcastsToConversationFromEnvelope(t *testing.T) {
	r := NewRegistry()
	convID := uuid.New()
	sock := &fakeSocket{}
	r.Connect(sock, "user:1")
	r.Subscribe("user:1", convID)

	b := NewBridge(r, logrus.New())
	env := &bus.Envelope{Event: "chat.message_created", Data: map[string]interface{}{
		"conversation_id": convID.String(),
	}}
	b.Handle(context.Background(), env)

	assert.Equal(t, []string{"chat.message_created"}, sock.received)
}

func TestBridgeHandle_DropsEnvelopeMissingConversationID(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, logrus.New())
	env := &bus.Envelope{Event: "chat.message_created", Data: map[string]interface{}{}}

	assert.NotPanics(t, func() { b.Handle(context.Background(), env) })
}

func TestBridgeHandle_DropsUnparseableConversationID(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, logrus.New())
	env := &bus.Envelope{Event: "chat.message_created", Data: map[string]interface{}{
		"conversation_id": "not-a-uuid",
	}}

	assert.NotPanics(t, func() { b.Handle(context.Background(), env) })
}
