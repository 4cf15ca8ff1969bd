// Package session is the in-process subscription registry and its
// bus-to-session bridge.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Socket is the minimal surface the registry needs from a live
// connection; internal/wsapi's connection type implements it.
type Socket interface {
	Send(eventType string, data map[string]interface{}) error
	Close()
}

// Registry is the process-local map of live sockets and per-conversation
// subscriptions. All mutations are serialised by a single mutex, since
// connect/disconnect/broadcast must never observe each other mid-update.
type Registry struct {
	mu            sync.Mutex
	connections   map[string]map[Socket]struct{}     // principal_key -> sockets
	subscriptions map[uuid.UUID]map[string]struct{}  // conversation_id -> principal_keys
}

func NewRegistry() *Registry {
	return &Registry{
		connections:   make(map[string]map[Socket]struct{}),
		subscriptions: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (r *Registry) Connect(socket Socket, principalKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.connections[principalKey]
	if !ok {
		set = make(map[Socket]struct{})
		r.connections[principalKey] = set
	}
	set[socket] = struct{}{}
}

// Disconnect removes the socket and, if the principal has no sockets
// left, purges it from every conversation's subscriber set.
func (r *Registry) Disconnect(socket Socket, principalKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectLocked(socket, principalKey)
}

func (r *Registry) disconnectLocked(socket Socket, principalKey string) {
	set, ok := r.connections[principalKey]
	if !ok {
		return
	}
	delete(set, socket)
	if len(set) > 0 {
		return
	}
	delete(r.connections, principalKey)
	for _, subs := range r.subscriptions {
		delete(subs, principalKey)
	}
}

func (r *Registry) Subscribe(principalKey string, conversationID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.subscriptions[conversationID]
	if !ok {
		subs = make(map[string]struct{})
		r.subscriptions[conversationID] = subs
	}
	subs[principalKey] = struct{}{}
}

func (r *Registry) Unsubscribe(principalKey string, conversationID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subscriptions[conversationID]; ok {
		delete(subs, principalKey)
	}
}

// failedSend pairs a socket with the principal_key it was delivering to,
// so failures can be disconnected after the broadcast loop completes
// instead of mutating connections mid-iteration.
type failedSend struct {
	socket       Socket
	principalKey string
}

// BroadcastToConversation sends one outbound frame to every socket of
// every principal subscribed to conversationID. Send failures are
// collected during the loop and disconnected only after it finishes.
func (r *Registry) BroadcastToConversation(conversationID uuid.UUID, eventType string, data map[string]interface{}) {
	r.mu.Lock()
	subs, ok := r.subscriptions[conversationID]
	if !ok || len(subs) == 0 {
		r.mu.Unlock()
		return
	}
	var failures []failedSend
	for principalKey := range subs {
		for socket := range r.connections[principalKey] {
			if err := socket.Send(eventType, data); err != nil {
				failures = append(failures, failedSend{socket: socket, principalKey: principalKey})
			}
		}
	}
	for _, f := range failures {
		r.disconnectLocked(f.socket, f.principalKey)
	}
	r.mu.Unlock()
}

// SendToPrincipal is the single-recipient analogue of
// BroadcastToConversation.
func (r *Registry) SendToPrincipal(principalKey string, eventType string, data map[string]interface{}) {
	r.mu.Lock()
	sockets, ok := r.connections[principalKey]
	if !ok {
		r.mu.Unlock()
		return
	}
	var failures []failedSend
	for socket := range sockets {
		if err := socket.Send(eventType, data); err != nil {
			failures = append(failures, failedSend{socket: socket, principalKey: principalKey})
		}
	}
	for _, f := range failures {
		r.disconnectLocked(f.socket, f.principalKey)
	}
	r.mu.Unlock()
}
