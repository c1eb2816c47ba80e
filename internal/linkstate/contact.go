package linkstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
)

// ErrContactUnsupported is returned when no host contact capability is available,
// e.g. the mini app was opened in a plain browser.
var ErrContactUnsupported = errors.New("host does not support contact requests")

// ContactRequester is the host's contact-sharing capability. It resolves to granted or
// denied; the host allows a single outstanding request.
type ContactRequester interface {
	RequestContact(ctx context.Context) (bool, error)
}

// ContactFunc adapts a function to ContactRequester.
type ContactFunc func(ctx context.Context) (bool, error)

// RequestContact calls f.
func (f ContactFunc) RequestContact(ctx context.Context) (bool, error) {
	return f(ctx)
}

// NoContact is used when the host has no contact capability.
var NoContact ContactRequester = ContactFunc(func(context.Context) (bool, error) {
	return false, ErrContactUnsupported
})

// BotLinker is the bot side of linking: it receives the shared contact and calls link-telegram.
type BotLinker interface {
	SystemToken(ctx context.Context, email, password string) (string, error)
	LinkTelegram(ctx context.Context, token string, req backend.LinkTelegramRequest) (*backend.LinkTelegramResponse, error)
}

// BotRelay plays the bot for development setups where no bot receives the shared contact.
// After inner grants, it links TelegramID to Phone on the backend.
type BotRelay struct {
	Inner      ContactRequester
	Linker     BotLinker
	Email      string
	Password   string
	TelegramID string
	Phone      string
}

// RequestContact asks Inner, then links on grant. A failed link is reported as an error so
// the flow does not poll for a link that will never appear.
func (r *BotRelay) RequestContact(ctx context.Context) (bool, error) {
	granted, err := r.Inner.RequestContact(ctx)
	if err != nil || !granted {
		return granted, err
	}

	token, err := r.Linker.SystemToken(ctx, r.Email, r.Password)
	if err != nil {
		return false, fmt.Errorf("bot relay: %w", err)
	}
	if _, err := r.Linker.LinkTelegram(ctx, token, backend.LinkTelegramRequest{
		TelegramID:  r.TelegramID,
		PhoneNumber: r.Phone,
	}); err != nil {
		return false, fmt.Errorf("bot relay: %w", err)
	}
	return true, nil
}
