package web

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu     sync.Mutex
	events []WSEvent
	sent   chan WSEvent
}

func newRecordingHub() *recordingHub {
	return &recordingHub{sent: make(chan WSEvent, 8)}
}

func (h *recordingHub) Broadcast(message interface{}) {
	ev, ok := message.(WSEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.sent <- ev
}

func TestContactBridge_Granted(t *testing.T) {
	hub := newRecordingHub()
	bridge := NewContactBridge(hub)

	type result struct {
		granted bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		granted, err := bridge.RequestContact(context.Background())
		done <- result{granted, err}
	}()

	ev := <-hub.sent
	require.Equal(t, EventContactRequest, ev.Type)
	id := ev.Payload.(ContactRequestPayload).RequestID
	assert.Equal(t, id, bridge.Pending())

	require.NoError(t, bridge.Resolve(id, true))

	select {
	case r := <-done:
		assert.NoError(t, r.err)
		assert.True(t, r.granted)
	case <-time.After(time.Second):
		t.Fatal("RequestContact did not return")
	}
	assert.Empty(t, bridge.Pending())
	assert.ErrorIs(t, bridge.Resolve(id, true), ErrNoPendingContact)
}

func TestContactBridge_DeniedWithEmptyID(t *testing.T) {
	hub := newRecordingHub()
	bridge := NewContactBridge(hub)

	done := make(chan bool, 1)
	go func() {
		granted, _ := bridge.RequestContact(context.Background())
		done <- granted
	}()
	<-hub.sent

	require.NoError(t, bridge.Resolve("", false))
	assert.False(t, <-done)
}

func TestContactBridge_WrongID(t *testing.T) {
	hub := newRecordingHub()
	bridge := NewContactBridge(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := bridge.RequestContact(ctx)
		done <- err
	}()
	<-hub.sent

	assert.ErrorIs(t, bridge.Resolve("someone-else", true), ErrNoPendingContact)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestContactBridge_ResolveWithoutRequest(t *testing.T) {
	bridge := NewContactBridge(newRecordingHub())
	assert.ErrorIs(t, bridge.Resolve("", true), ErrNoPendingContact)
}
