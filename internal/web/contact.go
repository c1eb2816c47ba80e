package web

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/blockedby/loyalty-miniapp/internal/logger"
)

// ErrNoPendingContact is returned when a contact result arrives with no matching request.
var ErrNoPendingContact = errors.New("no pending contact request")

// Broadcaster sends events to connected front-ends.
type Broadcaster interface {
	Broadcast(message interface{})
}

// ContactBridge is the host contact capability for a front-end connected over the hub.
// RequestContact broadcasts contact.request and blocks until Resolve is called with the
// same request id or ctx ends. Only one request is outstanding at a time.
type ContactBridge struct {
	hub Broadcaster

	mu      sync.Mutex
	pending string
	result  chan bool
}

// NewContactBridge creates a bridge over hub.
func NewContactBridge(hub Broadcaster) *ContactBridge {
	return &ContactBridge{hub: hub}
}

// RequestContact implements linkstate.ContactRequester.
func (b *ContactBridge) RequestContact(ctx context.Context) (bool, error) {
	id := uuid.NewString()
	result := make(chan bool, 1)

	b.mu.Lock()
	b.pending = id
	b.result = result
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending == id {
			b.pending = ""
			b.result = nil
		}
		b.mu.Unlock()
	}()

	logger.Get().Info().Str("request_id", id).Msg("contact: asking front-end for contact")
	b.hub.Broadcast(ContactRequestEvent(id))

	select {
	case granted := <-result:
		return granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers the user's answer. An empty requestID matches the outstanding request.
func (b *ContactBridge) Resolve(requestID string, granted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == "" || (requestID != "" && requestID != b.pending) {
		return ErrNoPendingContact
	}

	select {
	case b.result <- granted:
	default:
		// already answered
		return ErrNoPendingContact
	}
	return nil
}

// Pending returns the outstanding request id, or "".
func (b *ContactBridge) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}
