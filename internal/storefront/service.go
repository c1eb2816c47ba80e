// Package storefront is the application service of the mini app: catalog, cart, checkout,
// orders and profile, all gated by the link session.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockedby/loyalty-miniapp/internal/cart"
	"github.com/blockedby/loyalty-miniapp/internal/catalog"
	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

var (
	// ErrAuthRequired is returned when the session is not linked.
	ErrAuthRequired = errors.New("authentication required")
	// ErrPhoneRequired is returned when the session has no confirmed phone number.
	ErrPhoneRequired = errors.New("phone number required")
	// ErrProductNotFound is returned for an unknown product guid.
	ErrProductNotFound = errors.New("product not found")
	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientBalance is returned when the cart total exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrCommentTooLong is returned for order comments over MaxCommentLength runes.
	ErrCommentTooLong = errors.New("comment is too long")
)

// MaxCommentLength is the order comment limit in runes.
const MaxCommentLength = 500

// Session is the link session the service is gated by.
type Session interface {
	Start(ctx context.Context) bool
	CheckLink(ctx context.Context) bool
	Snapshot() linkstate.Snapshot
	Logout(ctx context.Context)
}

// OrderAPI places and lists orders.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	Orders(ctx context.Context) ([]models.Order, error)
}

// Service ties the session, catalog, cart and backend together.
type Service struct {
	session Session
	orders  OrderAPI
	catalog *catalog.Catalog
	cart    *cart.Cart
	log     *logger.Logger

	// gate is held by gated cart writes and by Logout, so no cart write lands in the
	// mirror after the logout cleared it.
	gate    sync.Mutex
	logouts uint64 // guarded by gate
}

// New creates a Service.
func New(session Session, orders OrderAPI, cat *catalog.Catalog, c *cart.Cart) *Service {
	return &Service{
		session: session,
		orders:  orders,
		catalog: cat,
		cart:    c,
		log:     logger.Get(),
	}
}

// Start restores the cart, then revalidates the session with the backend.
func (s *Service) Start(ctx context.Context) bool {
	if err := s.cart.Load(ctx); err != nil {
		s.log.Warn().Err(err).Msg("storefront: failed to restore cart")
	}
	return s.session.Start(ctx)
}

// Session returns the current session snapshot.
func (s *Service) Session() linkstate.Snapshot {
	return s.session.Snapshot()
}

// Catalog returns products filtered by category and search term. The catalog is loaded
// lazily if the link-triggered load has not happened yet.
func (s *Service) Catalog(ctx context.Context, category, term string) ([]models.Product, error) {
	if err := s.catalog.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.catalog.Filter(category, term), nil
}

// Categories returns the product categories.
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	if err := s.catalog.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.catalog.Categories(), nil
}

// Cart returns the cart lines.
func (s *Service) Cart() []models.CartItem {
	return s.cart.Items()
}

// CartTotal returns the cart total.
func (s *Service) CartTotal() float64 {
	return s.cart.Total()
}

// AddToCart adds one unit of a product.
func (s *Service) AddToCart(ctx context.Context, guid string) error {
	s.gate.Lock()
	defer s.gate.Unlock()
	if err := s.requirePurchase(); err != nil {
		return err
	}
	p, ok := s.catalog.Find(guid)
	if !ok {
		return ErrProductNotFound
	}
	if err := s.cart.Add(ctx, p); err != nil {
		return err
	}
	s.log.Info().Str("product", guid).Int("count", s.cart.Count()).Msg("storefront: added to cart")
	return nil
}

// UpdateQuantity sets the quantity of a cart line; below 1 removes it.
func (s *Service) UpdateQuantity(ctx context.Context, guid string, quantity int) error {
	s.gate.Lock()
	defer s.gate.Unlock()
	if err := s.requirePurchase(); err != nil {
		return err
	}
	return s.cart.SetQuantity(ctx, guid, quantity)
}

// RemoveFromCart removes a cart line.
func (s *Service) RemoveFromCart(ctx context.Context, guid string) error {
	s.gate.Lock()
	defer s.gate.Unlock()
	if err := s.requirePurchase(); err != nil {
		return err
	}
	return s.cart.Remove(ctx, guid)
}

// Orders lists the participant's orders, newest first.
func (s *Service) Orders(ctx context.Context) ([]models.Order, error) {
	if !s.session.Snapshot().IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	orders, err := s.orders.Orders(ctx)
	if err != nil {
		if errors.Is(err, linkstate.ErrUnauthorized) {
			s.session.CheckLink(ctx)
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	SortNewestFirst(orders)
	return orders, nil
}

// Logout ends the session and drops the in-memory cart. The stored cart is cleared by
// the session logout. A cart write already in progress finishes first.
func (s *Service) Logout(ctx context.Context) {
	s.gate.Lock()
	defer s.gate.Unlock()
	s.session.Logout(ctx)
	s.cart.Reset()
	s.logouts++
}

func (s *Service) logoutCount() uint64 {
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.logouts
}

func (s *Service) requirePurchase() error {
	snap := s.session.Snapshot()
	if !snap.IsAuthenticated() {
		return ErrAuthRequired
	}
	if snap.PhoneNumber == "" {
		return ErrPhoneRequired
	}
	return nil
}
