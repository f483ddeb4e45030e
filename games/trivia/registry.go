/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sender delivers one message to one client.
type Sender interface {
	Send(clientID string, msg any) error
}

// Registry maps connected clients to their outbound channels.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]chan any
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]chan any),
	}
}

// NewClientID returns a random 128-bit identifier.
func NewClientID() string {
	return uuid.NewString()
}

// Register stores ch under clientID. The registry owns ch from here on and
// closes it on Unregister.
func (r *Registry) Register(clientID string, ch chan any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[clientID]; exists {
		return fmt.Errorf("client %s already registered", clientID)
	}

	r.clients[clientID] = ch

	return nil
}

// Send queues msg without blocking. A client whose buffer is full is
// dropped, which closes its channel and ends its write pump.
func (r *Registry) Send(clientID string, msg any) error {
	r.mu.RLock()
	ch, ok := r.clients[clientID]
	if !ok {
		r.mu.RUnlock()
		return ErrUnknownClient.Wrap(fmt.Errorf("client %s", clientID))
	}

	select {
	case ch <- msg:
		r.mu.RUnlock()
		return nil
	default:
	}
	r.mu.RUnlock()

	r.Unregister(clientID)

	return ErrClientBacklogged.Wrap(fmt.Errorf("client %s", clientID))
}

// Unregister removes clientID and closes its channel. Safe to call twice.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.clients[clientID]; ok {
		delete(r.clients, clientID)
		close(ch)
	}
}

// Len returns the number of connected clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
