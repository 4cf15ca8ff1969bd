// Package wsapi is the bidirectional socket protocol handler: frame
// types, connection upgrade and auth, and the read/write pump loops.
package wsapi

import "encoding/json"

// Inbound frame types (client -> server).
const (
	InPing        = "ping"
	InSubscribe   = "subscribe"
	InMessageSend = "message.send"
	InMarkRead    = "mark_read"
)

// Outbound frame types (server -> client).
const (
	OutPong                = "pong"
	OutMessageCreated      = "message.created"
	OutConversationUpdated = "conversation.updated"
	OutError               = "error"
)

// Error codes carried in an OutError frame's data.code.
const (
	ErrUnknownType    = "unknown_type"
	ErrInvalidPayload = "invalid_payload"
	ErrInvalidData    = "invalid_data"
	ErrRateLimited    = "rate_limited"
)

// Inbound is the envelope read off the socket.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope written to the socket.
type Outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscribeData struct {
	ConversationID string `json:"conversation_id"`
}

type sendData struct {
	ConversationID string                 `json:"conversation_id"`
	ClientMsgID    string                 `json:"client_msg_id"`
	Type           string                 `json:"type"`
	Body           *string                `json:"body"`
	Payload        map[string]interface{} `json:"payload"`
}

type markReadData struct {
	ConversationID string `json:"conversation_id"`
	LastMessageID  string `json:"last_message_id"`
}

type errorData struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}
