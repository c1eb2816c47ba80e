package linkstate

import (
	"errors"
	"fmt"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// State represents whether this device is linked to a participant.
type State string

// State constants. Checking is initial; the other two hold until the next check or logout.
const (
	StateChecking        State = "CHECKING"
	StateAuthenticated   State = "AUTHENTICATED"
	StateUnauthenticated State = "UNAUTHENTICATED"
)

// Reasons attached to transitions.
const (
	ReasonStartup      = "startup"
	ReasonNoIdentity   = "no_identity"
	ReasonLinked       = "linked"
	ReasonNotLinked    = "not_linked"
	ReasonUnauthorized = "unauthorized"
	ReasonTransport    = "transport_error"
	ReasonLogout       = "logout"
)

var (
	// ErrUnauthorized is the backend's 401. Terminal for the current check or poll.
	ErrUnauthorized = backend.ErrUnauthorized
	// ErrTransport covers network and parsing failures of the link check.
	ErrTransport = backend.ErrTransport
	// ErrContactDenied means the user declined to share their contact.
	ErrContactDenied = errors.New("contact sharing denied")
	// ErrLinkTimeout means polling ran out of time without observing a link.
	ErrLinkTimeout = errors.New("link confirmation timed out")
	// ErrLinkInProgress is returned when a contact/link flow is already running.
	ErrLinkInProgress = errors.New("link flow already in progress")
	// ErrStaleResult means a check finished after a logout or cancel and was discarded.
	ErrStaleResult = errors.New("stale link result discarded")
)

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State          State               `json:"state"`
	Participant    *models.Participant `json:"participant,omitempty"`
	PhoneNumber    string              `json:"phone_number,omitempty"`
	LinkInProgress bool                `json:"link_in_progress"`
	Reason         string              `json:"reason,omitempty"`
	Generation     uint64              `json:"generation"`
}

// IsAuthenticated reports whether the session is linked.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// CanPurchase gates add-to-cart and checkout: linked and a confirmed phone number.
func (s Snapshot) CanPurchase() bool {
	return s.State == StateAuthenticated && s.PhoneNumber != ""
}

// Balance returns the cached participant balance or 0.
func (s Snapshot) Balance() float64 {
	if s.Participant == nil {
		return 0
	}
	return s.Participant.Balance
}

// UserMessage maps link errors to short messages for the mini app UI.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return "Номер телефона успешно привязан!"
	case errors.Is(err, ErrContactDenied):
		return "Доступ к номеру не предоставлен"
	case errors.Is(err, ErrLinkTimeout):
		return "Не удалось подтвердить номер телефона"
	case errors.Is(err, ErrUnauthorized):
		return "Ошибка авторизации"
	case errors.Is(err, ErrLinkInProgress):
		return "Проверка номера уже выполняется"
	default:
		return "Ошибка при проверке номера телефона"
	}
}

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
