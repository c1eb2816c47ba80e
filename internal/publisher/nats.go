// Package publisher emits session events to NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
)

// Subjects.
const (
	SubjectSessionState = "session.state"
	SubjectLinkResult   = "session.link"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// SessionEvent is a session transition. It carries no identity token and only the last
// digits of the phone number.
type SessionEvent struct {
	State       linkstate.State `json:"state"`
	Reason      string          `json:"reason,omitempty"`
	Generation  uint64          `json:"generation"`
	Participant string          `json:"participant_id,omitempty"`
	PhoneSuffix string          `json:"phone_suffix,omitempty"`
	Balance     float64         `json:"balance"`
	At          time.Time       `json:"at"`
}

// LinkResultEvent is the outcome of a contact/link flow.
type LinkResultEvent struct {
	Linked  bool      `json:"linked"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// NATSPublisher publishes session events.
type NATSPublisher struct {
	js  NATSClient
	now func() time.Time
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{js: conn, now: time.Now}
}

// NewSessionEvent builds the event for a snapshot.
func NewSessionEvent(snap linkstate.Snapshot, at time.Time) SessionEvent {
	ev := SessionEvent{
		State:      snap.State,
		Reason:     snap.Reason,
		Generation: snap.Generation,
		Balance:    snap.Balance(),
		At:         at.UTC(),
	}
	if snap.Participant != nil {
		ev.Participant = snap.Participant.ID
	}
	if n := len(snap.PhoneNumber); n >= 4 {
		ev.PhoneSuffix = snap.PhoneNumber[n-4:]
	}
	return ev
}

// PublishSessionState publishes a snapshot on SubjectSessionState.
func (p *NATSPublisher) PublishSessionState(_ context.Context, snap linkstate.Snapshot) error {
	return p.publish(SubjectSessionState, NewSessionEvent(snap, p.now()))
}

// PublishLinkResult publishes the outcome of a link flow on SubjectLinkResult.
func (p *NATSPublisher) PublishLinkResult(_ context.Context, err error) error {
	ev := LinkResultEvent{
		Linked:  err == nil,
		Message: linkstate.UserMessage(err),
		At:      p.now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return p.publish(SubjectLinkResult, ev)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
