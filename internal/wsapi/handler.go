package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/shopmindai/chat-core/internal/app/service"
	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/authn"
	"github.com/shopmindai/chat-core/internal/domain"
	"github.com/shopmindai/chat-core/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64

	// authCloseCode is the close code sent to the client on handshake
	// authentication failure.
	authCloseCode = 4001

	// perConnectionRateLimit caps inbound frames per connection.
	perConnectionRateLimit = 10
	perConnectionBurst     = 20
)

// Handler upgrades HTTP requests to WS connections and runs the
// read/write pumps for each one.
type Handler struct {
	Registry  *session.Registry
	Verifier  authn.TokenVerifier
	Message   *service.MessageService
	ReadState *service.ReadStateService
	Heartbeat time.Duration
	Logger    *logrus.Logger
	Upgrader  websocket.Upgrader
}

func NewHandler(registry *session.Registry, verifier authn.TokenVerifier, message *service.MessageService, readState *service.ReadStateService, heartbeat time.Duration, allowedOrigins map[string]bool, logger *logrus.Logger) *Handler {
	return &Handler{
		Registry:  registry,
		Verifier:  verifier,
		Message:   message,
		ReadState: readState,
		Heartbeat: heartbeat,
		Logger:    logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return allowedOrigins[r.Header.Get("Origin")]
			},
		},
	}
}

// connection implements session.Socket.
type connection struct {
	conn      *websocket.Conn
	send      chan Outbound
	principal domain.Principal
	limiter   *rate.Limiter
	closeOnce sync.Once
}

func (c *connection) Send(eventType string, data map[string]interface{}) error {
	select {
	case c.send <- Outbound{Type: eventType, Data: data}:
		return nil
	default:
		return fmt.Errorf("wsapi: send buffer full")
	}
}

func (c *connection) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.WithError(err).WithField("component", "wsapi").Error("upgrade failed")
		return
	}

	principal, err := h.Verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		closeMsg := websocket.FormatCloseMessage(authCloseCode, "unauthorized")
		conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	c := &connection{
		conn:      conn,
		send:      make(chan Outbound, sendBuffer),
		principal: principal,
		limiter:   rate.NewLimiter(rate.Limit(perConnectionRateLimit), perConnectionBurst),
	}

	principalKey := principal.Key()
	h.Registry.Connect(c, principalKey)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); h.writePump(c) }()
	go func() { defer wg.Done(); h.readPump(c, principalKey) }()
	wg.Wait()
}

func (h *Handler) writePump(c *connection) {
	ticker := time.NewTicker(h.Heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			// Unsolicited heartbeat pong in addition to responding to
			// client ping, so idle clients can detect a dead connection.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(Outbound{Type: OutPong, Data: nil}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(c *connection, principalKey string) {
	defer func() {
		h.Registry.Disconnect(c, principalKey)
		c.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.Send(OutError, map[string]interface{}{"code": ErrRateLimited})
			continue
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.Send(OutError, map[string]interface{}{"code": ErrInvalidPayload})
			continue
		}

		switch in.Type {
		case InPing:
			c.Send(OutPong, nil)
		case InSubscribe:
			h.handleSubscribe(c, principalKey, in.Data)
		case InMessageSend:
			h.handleSend(context.Background(), c, in.Data)
		case InMarkRead:
			h.handleMarkRead(context.Background(), c, in.Data)
		default:
			c.Send(OutError, map[string]interface{}{"code": ErrUnknownType})
		}
	}
}

func (h *Handler) handleSubscribe(c *connection, principalKey string, raw json.RawMessage) {
	var d subscribeData
	if err := json.Unmarshal(raw, &d); err != nil {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}
	conversationID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}
	h.Registry.Subscribe(principalKey, conversationID)
}

// handleSend is the dual-delivery path: it calls the core SendMessage
// write path AND directly broadcasts to the conversation's subscribers
// on this instance, in addition to (not instead of) the outbox -> bus
// -> bridge path that handles cross-instance fanout.
func (h *Handler) handleSend(ctx context.Context, c *connection, raw json.RawMessage) {
	var d sendData
	if err := json.Unmarshal(raw, &d); err != nil {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}
	conversationID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}
	clientMsgID, err := uuid.Parse(d.ClientMsgID)
	if err != nil {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}
	typ := domain.MessageType(d.Type)
	if typ != domain.MessageText && typ != domain.MessageSystem && typ != domain.MessageAttachment {
		c.Send(OutError, map[string]interface{}{"code": ErrInvalidData})
		return
	}

	msg, _, err := h.Message.SendMessage(ctx, conversationID, c.principal, clientMsgID, typ, d.Body, d.Payload)
	if err != nil {
		c.Send(OutError, map[string]interface{}{"code": string(errKind(err)), "detail": err.Error()})
		return
	}

	payload := map[string]interface{}{
		"message_id":      msg.ID.String(),
		"conversation_id": msg.ConversationID.String(),
		"sender_kind":     string(msg.SenderKind),
		"sender_id":       msg.SenderID,
		"type":            string(msg.Type),
	}
	if msg.Body != nil {
		payload["body"] = *msg.Body
	}
	h.Registry.BroadcastToConversation(conversationID, OutMessageCreated, payload)
}

func (h *Handler) handleMarkRead(ctx context.Context, c *connection, raw json.RawMessage) {
	var d markReadData
	if err := json.Unmarshal(raw, &d); err != nil {
		// Malformed mark_read is silently swallowed, no error frame:
		// read-state tracking is best-effort and shouldn't disrupt the
		// connection over a bad payload.
		return
	}
	conversationID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		return
	}
	lastMessageID, err := uuid.Parse(d.LastMessageID)
	if err != nil {
		return
	}
	_ = h.ReadState.MarkRead(ctx, conversationID, c.principal, lastMessageID)
}

func errKind(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return string(appErr.Kind)
	}
	return string(apperr.KindStorage)
}
