package backend

import (
	"encoding/json"
	"net/url"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// TelegramUserID extracts user.id from mini app init data. The signature is not verified;
// that is the backend's job.
func TelegramUserID(initData string) (string, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return "", false
	}
	raw := values.Get("user")
	if raw == "" {
		return "", false
	}
	var user struct {
		ID models.FlexibleID `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		return "", false
	}
	return string(user.ID), true
}
