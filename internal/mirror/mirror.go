// Package mirror is the local, session-scoped cache of the participant and cart.
//
// The mirror is never a source of truth: values are whole-object JSON overwrites and
// callers must revalidate against the backend before trusting what they load.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// Mirror keys.
const (
	KeyParticipant = "participant"
	KeyPhoneNumber = "phone_number"
	KeyUserData    = "user_data"
	KeyCart        = "cart"
)

var identityKeys = []string{KeyParticipant, KeyPhoneNumber, KeyUserData}

// Store is a text key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Snapshot is everything the mirror holds.
type Snapshot struct {
	Participant *models.Participant
	PhoneNumber string
	Profile     models.TelegramProfile
	Cart        []models.CartItem
}

// Mirror serializes session state into a Store.
type Mirror struct {
	store Store
}

// New creates a mirror over the given store.
func New(store Store) *Mirror {
	return &Mirror{store: store}
}

// SaveSession overwrites the participant, the derived phone number and the profile.
func (m *Mirror) SaveSession(ctx context.Context, p *models.Participant) error {
	if p == nil {
		return m.ClearIdentity(ctx)
	}
	if err := m.setJSON(ctx, KeyParticipant, p); err != nil {
		return err
	}
	if err := m.store.Set(ctx, KeyPhoneNumber, p.PhoneNumber); err != nil {
		return fmt.Errorf("save %s: %w", KeyPhoneNumber, err)
	}
	return m.setJSON(ctx, KeyUserData, p.Profile())
}

// SaveCart overwrites the cart snapshot.
func (m *Mirror) SaveCart(ctx context.Context, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	return m.setJSON(ctx, KeyCart, items)
}

// LoadCart returns the cart snapshot or an empty cart.
func (m *Mirror) LoadCart(ctx context.Context) ([]models.CartItem, error) {
	var items []models.CartItem
	if _, err := m.getJSON(ctx, KeyCart, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Load reads the whole snapshot. Missing keys are left zero.
func (m *Mirror) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var p models.Participant
	found, err := m.getJSON(ctx, KeyParticipant, &p)
	if err != nil {
		return snap, err
	}
	if found {
		snap.Participant = &p
	}

	phone, _, err := m.store.Get(ctx, KeyPhoneNumber)
	if err != nil {
		return snap, fmt.Errorf("load %s: %w", KeyPhoneNumber, err)
	}
	snap.PhoneNumber = phone
	// phone is derived from the participant record
	if snap.Participant != nil {
		snap.PhoneNumber = snap.Participant.PhoneNumber
	}

	if _, err := m.getJSON(ctx, KeyUserData, &snap.Profile); err != nil {
		return snap, err
	}

	cart, err := m.LoadCart(ctx)
	if err != nil {
		return snap, err
	}
	snap.Cart = cart

	return snap, nil
}

// ClearIdentity removes the participant, phone number and profile but keeps the cart.
func (m *Mirror) ClearIdentity(ctx context.Context) error {
	if err := m.store.Delete(ctx, identityKeys...); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// Clear removes every mirror entry.
func (m *Mirror) Clear(ctx context.Context) error {
	keys := append(append([]string{}, identityKeys...), KeyCart)
	if err := m.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}
	return nil
}

func (m *Mirror) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := m.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (m *Mirror) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" || raw == "null" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// a corrupt cache entry is treated as missing
		return false, nil
	}
	return true, nil
}
