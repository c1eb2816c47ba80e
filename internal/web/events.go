package web

import (
	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
)

// WebSocket event types
const (
	EventSessionState   = "session.state"
	EventContactRequest = "contact.request"
	EventLinkSuccess    = "link.success"
	EventLinkFailed     = "link.failed"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ContactRequestPayload asks the front-end to open the host's contact dialog.
type ContactRequestPayload struct {
	RequestID string `json:"request_id"`
}

// LinkResultPayload reports how a contact/link flow ended.
type LinkResultPayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SessionStateEvent wraps a session snapshot.
func SessionStateEvent(snap linkstate.Snapshot) WSEvent {
	return WSEvent{Type: EventSessionState, Payload: snap}
}

// ContactRequestEvent asks the front-end for the user's contact.
func ContactRequestEvent(requestID string) WSEvent {
	return WSEvent{Type: EventContactRequest, Payload: ContactRequestPayload{RequestID: requestID}}
}

// LinkResultEvent is link.success for a nil error and link.failed otherwise.
func LinkResultEvent(err error) WSEvent {
	payload := LinkResultPayload{Message: linkstate.UserMessage(err)}
	if err == nil {
		return WSEvent{Type: EventLinkSuccess, Payload: payload}
	}
	payload.Error = err.Error()
	return WSEvent{Type: EventLinkFailed, Payload: payload}
}
