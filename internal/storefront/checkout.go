package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// CheckoutSummary is shown in the confirmation dialog.
type CheckoutSummary struct {
	Items        []models.CartItem `json:"items"`
	TotalItems   int               `json:"total_items"`
	Total        float64           `json:"total"`
	Balance      float64           `json:"balance"`
	BalanceAfter float64           `json:"balance_after"`
}

// OrderRejectedError carries the backend's reason for a 400 on create-order.
type OrderRejectedError struct {
	Detail string
}

func (e *OrderRejectedError) Error() string {
	if e.Detail == "" {
		return "order rejected"
	}
	return "order rejected: " + e.Detail
}

// PrepareCheckout validates the cart against the session and balance.
func (s *Service) PrepareCheckout() (*CheckoutSummary, error) {
	if err := s.requirePurchase(); err != nil {
		return nil, err
	}
	if s.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	total := s.cart.Total()
	balance := s.session.Snapshot().Balance()
	if balance < total {
		return nil, ErrInsufficientBalance
	}

	return &CheckoutSummary{
		Items:        s.cart.Items(),
		TotalItems:   s.cart.Count(),
		Total:        total,
		Balance:      balance,
		BalanceAfter: balance - total,
	}, nil
}

// Checkout places the order. On success the cart is cleared and the participant is
// refreshed. A 401 re-runs the link check.
func (s *Service) Checkout(ctx context.Context, comment string) (*models.Order, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if _, err := s.PrepareCheckout(); err != nil {
		return nil, err
	}

	logouts := s.logoutCount()
	req := models.CreateOrderRequest{
		Items:      s.cart.OrderItems(),
		Commentary: comment,
	}

	order, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		var apiErr *backend.APIError
		switch {
		case errors.Is(err, linkstate.ErrUnauthorized):
			s.log.Warn().Msg("storefront: order rejected as unauthorized, re-checking link")
			s.session.CheckLink(ctx)
			return nil, ErrAuthRequired
		case errors.As(err, &apiErr) && apiErr.StatusCode == 400:
			return nil, &OrderRejectedError{Detail: apiErr.Detail}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info().Str("order", order.Title()).Float64("total", order.Total()).Msg("storefront: order created")

	s.clearCartAfterOrder(ctx, logouts)
	s.session.CheckLink(ctx)

	return order, nil
}

// clearCartAfterOrder skips the mirror write when a logout happened while the order was
// in flight; the logout already dropped the cart.
func (s *Service) clearCartAfterOrder(ctx context.Context, logouts uint64) {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.logouts != logouts {
		return
	}
	if err := s.cart.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("storefront: failed to clear cart after order")
	}
}
