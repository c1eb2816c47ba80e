// Package linkstate tracks whether this mini app session is linked to a loyalty
// participant with a confirmed phone number.
package linkstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/mirror"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// Default polling parameters.
const (
	DefaultPollTimeout  = 15 * time.Second
	DefaultPollInterval = time.Second
)

// LinkChecker is the backend link-check call.
type LinkChecker interface {
	CheckLink(ctx context.Context) (*backend.CheckLinkResponse, error)
}

// identityAware is implemented by checkers that know whether a host identity token is set.
type identityAware interface {
	HasIdentity() bool
}

// AuxLoader loads the read-only collections needed once linked (catalog, categories).
type AuxLoader interface {
	EnsureLoaded(ctx context.Context) error
}

// StateCallback is called after every applied transition.
type StateCallback func(ctx context.Context, snap Snapshot)

// Options configure a Manager.
type Options struct {
	PollTimeout  time.Duration
	PollInterval time.Duration
}

// Manager owns the session state machine. Every state change goes through apply,
// which drops results whose generation is no longer current.
type Manager struct {
	checker LinkChecker
	contact ContactRequester
	mirror  *mirror.Mirror
	log     *logger.Logger

	pollTimeout  time.Duration
	pollInterval time.Duration

	mu          sync.RWMutex
	state       State
	participant *models.Participant
	reason      string
	generation  uint64

	// serializes transitions, mirror writes and notifications; the state
	// callback must not call back into apply or Logout
	transitionMu sync.Mutex

	// link flow state management
	linkInProgress atomic.Bool
	linkCancel     context.CancelFunc
	linkID         uint64
	linkMu         sync.Mutex

	aux   AuxLoader
	auxMu sync.RWMutex

	stateCallback   StateCallback
	stateCallbackMu sync.RWMutex
}

// NewManager creates a Manager in the Checking state.
func NewManager(checker LinkChecker, contact ContactRequester, m *mirror.Mirror, opts Options) *Manager {
	if contact == nil {
		contact = NoContact
	}
	if m == nil {
		m = mirror.New(mirror.NewMemoryStore())
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Manager{
		checker:      checker,
		contact:      contact,
		mirror:       m,
		log:          logger.Get(),
		pollTimeout:  opts.PollTimeout,
		pollInterval: opts.PollInterval,
		state:        StateChecking,
		reason:       ReasonStartup,
	}
}

// SetAuxLoader sets the loader triggered after a successful link.
func (m *Manager) SetAuxLoader(l AuxLoader) {
	m.auxMu.Lock()
	defer m.auxMu.Unlock()
	m.aux = l
}

// SetContactRequester replaces the host contact capability.
func (m *Manager) SetContactRequester(c ContactRequester) {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()
	m.contact = c
}

// SetStateCallback sets the callback for state transitions.
func (m *Manager) SetStateCallback(cb StateCallback) {
	m.stateCallbackMu.Lock()
	defer m.stateCallbackMu.Unlock()
	m.stateCallback = cb
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// snapshotLocked exposes the participant only while Checking or Authenticated. A participant
// kept after a transport failure stays in memory for the next check but is not shown.
func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          m.state,
		LinkInProgress: m.linkInProgress.Load(),
		Reason:         m.reason,
		Generation:     m.generation,
	}
	if m.participant != nil && m.state != StateUnauthenticated {
		snap.Participant = m.participant.Clone()
		snap.PhoneNumber = m.participant.PhoneNumber
	}
	return snap
}

// GetState returns the current state.
func (m *Manager) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsLinkInProgress returns true if a contact/link flow is running.
func (m *Manager) IsLinkInProgress() bool {
	return m.linkInProgress.Load()
}

// Start restores the mirror and revalidates it with the backend. The restored
// participant is only shown while Checking; it is trusted once CheckLink confirms it.
func (m *Manager) Start(ctx context.Context) bool {
	m.restore(ctx)

	if ia, ok := m.checker.(identityAware); ok && !ia.HasIdentity() {
		m.log.Info().Msg("linkstate: no host identity, staying unauthenticated")
		m.apply(ctx, m.currentGeneration(), StateUnauthenticated, nil, false, ReasonNoIdentity)
		return false
	}

	return m.CheckLink(ctx)
}

func (m *Manager) restore(ctx context.Context) {
	snap, err := m.mirror.Load(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("linkstate: failed to load mirror")
		return
	}

	m.mu.Lock()
	if m.state == StateChecking && m.participant == nil {
		m.participant = snap.Participant
	}
	m.mu.Unlock()
}

// CheckLink asks the backend once whether this identity is linked and applies the outcome.
func (m *Manager) CheckLink(ctx context.Context) bool {
	linked, _ := m.check(ctx)
	return linked
}

// check runs one link check. The error classifies why the result is not linked:
// nil (explicit not linked), ErrUnauthorized, ErrTransport or ErrStaleResult.
func (m *Manager) check(ctx context.Context) (bool, error) {
	gen := m.currentGeneration()

	resp, err := m.checker.CheckLink(ctx)
	switch {
	case errors.Is(err, ErrUnauthorized):
		m.log.Warn().Msg("linkstate: backend rejected identity")
		if !m.apply(ctx, gen, StateUnauthenticated, nil, true, ReasonUnauthorized) {
			return false, ErrStaleResult
		}
		return false, ErrUnauthorized

	case err != nil:
		m.log.Warn().Err(err).Msg("linkstate: link check failed")
		if !m.apply(ctx, gen, StateUnauthenticated, nil, false, ReasonTransport) {
			return false, ErrStaleResult
		}
		return false, transportError(err)

	case !resp.Linked():
		if !m.apply(ctx, gen, StateUnauthenticated, nil, true, ReasonNotLinked) {
			return false, ErrStaleResult
		}
		return false, nil
	}

	if !m.apply(ctx, gen, StateAuthenticated, resp.Participant, false, ReasonLinked) {
		m.log.Info().Msg("linkstate: discarding link result from previous session")
		return false, ErrStaleResult
	}

	m.loadAux(ctx)
	return true, nil
}

func (m *Manager) loadAux(ctx context.Context) {
	m.auxMu.RLock()
	aux := m.aux
	m.auxMu.RUnlock()

	if aux == nil {
		return
	}
	if err := aux.EnsureLoaded(ctx); err != nil {
		m.log.Warn().Err(err).Msg("linkstate: failed to load catalog after link")
	}
}

// apply is the single transition function. It returns false without touching
// anything if gen is no longer current. The whole transition, mirror write and
// notification included, runs under transitionMu so subscribers see states in order.
func (m *Manager) apply(ctx context.Context, gen uint64, state State, p *models.Participant, clearIdentity bool, reason string) bool {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return false
	}

	m.state = state
	m.reason = reason
	switch {
	case state == StateAuthenticated:
		m.participant = p.Clone()
	case clearIdentity:
		m.participant = nil
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if m.currentGeneration() == gen {
		var err error
		switch {
		case state == StateAuthenticated:
			err = m.mirror.SaveSession(ctx, p)
		case clearIdentity:
			err = m.mirror.ClearIdentity(ctx)
		}
		if err != nil {
			m.log.Warn().Err(err).Msg("linkstate: failed to write mirror")
		}
	}

	m.notify(ctx, snap)
	return true
}

func (m *Manager) notify(ctx context.Context, snap Snapshot) {
	m.stateCallbackMu.RLock()
	cb := m.stateCallback
	m.stateCallbackMu.RUnlock()

	if cb != nil {
		cb(ctx, snap)
	}
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

func (m *Manager) bumpGeneration() {
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()
}

// PollLink calls CheckLink every interval until linked or until timeout has elapsed
// since the first attempt. Failed checks count as "not yet linked" but never extend the
// timeout. A 401 ends polling immediately.
func (m *Manager) PollLink(ctx context.Context, timeout, interval time.Duration) (bool, error) {
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		linked, err := m.check(ctx)
		if linked {
			m.log.Info().Int("attempt", attempt).Dur("elapsed", time.Since(start)).Msg("linkstate: link confirmed")
			return true, nil
		}

		switch {
		case errors.Is(err, ErrUnauthorized):
			return false, ErrUnauthorized
		case errors.Is(err, ErrStaleResult):
			return false, ErrStaleResult
		case ctx.Err() != nil:
			return false, ctx.Err()
		}

		if time.Since(start) >= timeout {
			m.log.Info().Int("attempts", attempt).Msg("linkstate: link polling timed out")
			return false, ErrLinkTimeout
		}

		m.log.Debug().Int("attempt", attempt).Err(err).Msg("linkstate: not linked yet")

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
}

// RequestContactAndLink asks the host for the user's contact and, once granted, polls the
// backend until the contact-share webhook has linked the participant. Denial leaves the
// session unchanged. Only one flow runs at a time.
func (m *Manager) RequestContactAndLink(ctx context.Context) error {
	flow, err := m.beginLink(ctx)
	if err != nil {
		return err
	}
	return m.runLink(flow)
}

// StartContactAndLink reserves the link flow and runs it in the background, passing the
// outcome to done. A running flow is reported synchronously as ErrLinkInProgress and done
// is not called.
func (m *Manager) StartContactAndLink(ctx context.Context, done func(error)) error {
	flow, err := m.beginLink(ctx)
	if err != nil {
		return err
	}
	go func() {
		err := m.runLink(flow)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// linkFlow is a reserved contact/link flow.
type linkFlow struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	contact ContactRequester
}

func (m *Manager) beginLink(ctx context.Context) (*linkFlow, error) {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()

	if m.linkInProgress.Load() {
		m.log.Info().Msg("linkstate: link flow already in progress, ignoring new request")
		return nil, ErrLinkInProgress
	}

	linkCtx, cancel := context.WithCancel(ctx)
	m.linkID++
	m.linkCancel = cancel
	m.linkInProgress.Store(true)

	return &linkFlow{id: m.linkID, ctx: linkCtx, cancel: cancel, contact: m.contact}, nil
}

func (m *Manager) endLink(flow *linkFlow) {
	m.linkMu.Lock()
	if m.linkID == flow.id {
		m.linkInProgress.Store(false)
		if m.linkCancel != nil {
			m.linkCancel()
			m.linkCancel = nil
		}
	}
	m.linkMu.Unlock()
	flow.cancel()
}

func (m *Manager) runLink(flow *linkFlow) error {
	defer m.endLink(flow)

	granted, err := flow.contact.RequestContact(flow.ctx)
	if err != nil {
		return fmt.Errorf("request contact: %w", err)
	}
	if !granted {
		m.log.Info().Msg("linkstate: user declined contact sharing")
		return ErrContactDenied
	}

	m.log.Info().Dur("timeout", m.pollTimeout).Msg("linkstate: contact shared, polling for link")

	linked, err := m.PollLink(flow.ctx, m.pollTimeout, m.pollInterval)
	if linked {
		return nil
	}
	if err == nil {
		err = ErrLinkTimeout
	}
	return err
}

// CancelLink stops any running contact/link flow and discards in-flight check results.
func (m *Manager) CancelLink() {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()

	if m.linkCancel == nil {
		return
	}

	m.log.Info().Msg("linkstate: canceling ongoing link flow")
	m.bumpGeneration()
	m.linkCancel()
	m.linkCancel = nil
	m.linkInProgress.Store(false)
}

// Logout forgets the participant and phone number, clears the mirror (cart included) and
// moves to Unauthenticated. Late results of checks started before Logout are discarded.
// Calling it again is harmless.
func (m *Manager) Logout(ctx context.Context) {
	m.CancelLink()

	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	m.generation++
	m.state = StateUnauthenticated
	m.reason = ReasonLogout
	m.participant = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.mirror.Clear(ctx); err != nil {
		m.log.Warn().Err(err).Msg("linkstate: failed to clear mirror on logout")
	}

	m.log.Info().Msg("linkstate: logged out")
	m.notify(ctx, snap)
}
