package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/web"
)

// LinkResultHook is called when a background contact/link flow ends.
type LinkResultHook func(ctx context.Context, err error)

// SessionHandler handles the link session endpoints
type SessionHandler struct {
	session LinkSession
	shop    Shop
	contact ContactResolver
	hub     HubBroadcaster

	hookMu sync.RWMutex
	onLink LinkResultHook

	// background flows; Wait is used by tests and shutdown
	flows sync.WaitGroup
}

// NewSessionHandler creates a new SessionHandler. contact and hub may be nil.
func NewSessionHandler(session LinkSession, shop Shop, contact ContactResolver, hub HubBroadcaster) *SessionHandler {
	return &SessionHandler{
		session: session,
		shop:    shop,
		contact: contact,
		hub:     hub,
	}
}

// SetLinkResultHook sets the hook called after each background link flow.
func (h *SessionHandler) SetLinkResultHook(hook LinkResultHook) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onLink = hook
}

// Wait blocks until background link flows have finished.
func (h *SessionHandler) Wait() {
	h.flows.Wait()
}

// GetStatus returns the current session snapshot
func (h *SessionHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Check runs a single link check against the backend
func (h *SessionHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.session.CheckLink(r.Context())
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// StartContact starts the contact/link flow in the background. The outcome is
// broadcast as link.success or link.failed.
func (h *SessionHandler) StartContact(w http.ResponseWriter, _ *http.Request) {
	h.flows.Add(1)
	// the request context ends with the response; the flow is bounded by the poll timeout
	err := h.session.StartContactAndLink(context.Background(), func(err error) {
		defer h.flows.Done()
		h.linkFinished(err)
	})
	if err != nil {
		h.flows.Done()
		if errors.Is(err, linkstate.ErrLinkInProgress) {
			respondJSON(w, http.StatusAccepted, map[string]string{"status": "already in progress"})
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *SessionHandler) linkFinished(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Info().Err(err).Msg("session: link flow ended without link")
	}

	if h.hub != nil {
		h.hub.Broadcast(web.LinkResultEvent(err))
	}

	h.hookMu.RLock()
	hook := h.onLink
	h.hookMu.RUnlock()
	if hook != nil {
		hook(context.Background(), err)
	}
}

// ContactResultRequest is the front-end's answer to contact.request.
type ContactResultRequest struct {
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
}

// ContactResult delivers the host dialog outcome to the waiting flow
func (h *SessionHandler) ContactResult(w http.ResponseWriter, r *http.Request) {
	if h.contact == nil {
		respondError(w, http.StatusNotImplemented, "contact bridge is not configured")
		return
	}

	var req ContactResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.contact.Resolve(req.RequestID, req.Granted); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// CancelLink stops a running contact/link flow
func (h *SessionHandler) CancelLink(w http.ResponseWriter, _ *http.Request) {
	h.session.CancelLink()
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Logout forgets the participant, phone number and cart
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.shop.Logout(r.Context())
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}
