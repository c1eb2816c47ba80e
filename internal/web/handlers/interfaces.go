package handlers

import (
	"context"

	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/models"
	"github.com/blockedby/loyalty-miniapp/internal/storefront"
)

// HubBroadcaster defines the interface for broadcasting messages to connected clients.
type HubBroadcaster interface {
	Broadcast(message interface{})
}

// LinkSession defines the link state operations required by SessionHandler
type LinkSession interface {
	Snapshot() linkstate.Snapshot
	CheckLink(ctx context.Context) bool
	StartContactAndLink(ctx context.Context, done func(error)) error
	CancelLink()
}

// ContactResolver receives the front-end's answer to a contact request.
type ContactResolver interface {
	Resolve(requestID string, granted bool) error
}

// Shop defines the storefront operations required by the handlers
type Shop interface {
	Session() linkstate.Snapshot
	Catalog(ctx context.Context, category, term string) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Cart() []models.CartItem
	CartTotal() float64
	AddToCart(ctx context.Context, guid string) error
	UpdateQuantity(ctx context.Context, guid string, quantity int) error
	RemoveFromCart(ctx context.Context, guid string) error
	PrepareCheckout() (*storefront.CheckoutSummary, error)
	Checkout(ctx context.Context, comment string) (*models.Order, error)
	Orders(ctx context.Context) ([]models.Order, error)
	Profile() storefront.Profile
	Logout(ctx context.Context)
}
