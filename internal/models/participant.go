// Package models holds the records exchanged with the loyalty backend.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexibleID decodes identifiers the backend sends either as a JSON string or a number.
type FlexibleID string

// UnmarshalJSON accepts "123", 123 and null.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// TelegramProfile is the telegram account attached to a participant.
type TelegramProfile struct {
	ID        FlexibleID `json:"id,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Username  string     `json:"username,omitempty"`
}

// DisplayName joins first and last name.
func (p TelegramProfile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Participant is a loyalty program member. The backend owns it; clients only cache a copy.
type Participant struct {
	ID              string           `json:"id,omitempty"`
	PhoneNumber     string           `json:"phone_number"`
	Balance         float64          `json:"balance"`
	TelegramProfile *TelegramProfile `json:"telegram_profile,omitempty"`
}

// Profile returns the telegram profile or an empty one.
func (p *Participant) Profile() TelegramProfile {
	if p == nil || p.TelegramProfile == nil {
		return TelegramProfile{}
	}
	return *p.TelegramProfile
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	c := *p
	if p.TelegramProfile != nil {
		prof := *p.TelegramProfile
		c.TelegramProfile = &prof
	}
	return &c
}
