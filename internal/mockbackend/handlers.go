package mockbackend

import (
	"context"
	"errors"
	"strings"

	"github.com/go-fuego/fuego"
	"github.com/google/uuid"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// identity returns the caller set by tmaAuth.
func identity(c interface{ Context() context.Context }) string {
	id, _ := c.Context().Value(identityKey{}).(string)
	return id
}

// ============================================================================
// System
// ============================================================================

func (s *Server) healthCheck(_ fuego.ContextNoBody) (HealthResponse, error) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	return HealthResponse{Status: "ok", Version: version}, nil
}

// ============================================================================
// Bot
// ============================================================================

func (s *Server) issueToken(c fuego.ContextWithBody[TokenRequest]) (TokenResponse, error) {
	body, err := c.Body()
	if err != nil {
		return TokenResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	want := s.store.seed.SystemUser
	if want.Email != "" && (body.Email != want.Email || body.Password != want.Password) {
		return TokenResponse{}, fuego.UnauthorizedError{Detail: "Не найдено активной учетной записи с указанными данными"}
	}

	token := "mock_access_" + uuid.NewString()
	s.tokensMu.Lock()
	s.tokens[token] = true
	s.tokensMu.Unlock()

	return TokenResponse{
		Access:    token,
		Refresh:   "mock_refresh_" + uuid.NewString(),
		ExpiresIn: 3600,
	}, nil
}

func (s *Server) linkTelegram(c fuego.ContextWithBody[backend.LinkTelegramRequest]) (backend.LinkTelegramResponse, error) {
	body, err := c.Body()
	if err != nil {
		return backend.LinkTelegramResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}
	if strings.TrimSpace(body.TelegramID) == "" || strings.TrimSpace(body.PhoneNumber) == "" {
		return backend.LinkTelegramResponse{}, fuego.BadRequestError{Detail: "telegram_id и phone_number обязательны"}
	}

	p := s.store.link(body.TelegramID, body.PhoneNumber, &models.TelegramProfile{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Username:  body.Username,
	})
	s.log.Info().Str("telegram_id", body.TelegramID).Msg("mockbackend: telegram account linked")

	return backend.LinkTelegramResponse{
		Success:     true,
		Message:     "Telegram-аккаунт успешно привязан",
		Participant: p,
	}, nil
}

// ============================================================================
// Mini app
// ============================================================================

func (s *Server) checkTelegramLink(c fuego.ContextNoBody) (backend.CheckLinkResponse, error) {
	p, ok := s.store.linkedParticipant(identity(c))
	if !ok {
		return backend.CheckLinkResponse{Success: true, IsLinked: false}, nil
	}
	return backend.CheckLinkResponse{Success: true, IsLinked: true, Participant: p}, nil
}

func (s *Server) listProducts(c fuego.ContextNoBody) ([]models.Product, error) {
	return s.store.filterProducts(c.QueryParam("category")), nil
}

func (s *Server) listCategories(_ fuego.ContextNoBody) ([]models.Category, error) {
	return append([]models.Category(nil), s.store.seed.Categories...), nil
}

func (s *Server) createOrder(c fuego.ContextWithBody[models.CreateOrderRequest]) (models.Order, error) {
	body, err := c.Body()
	if err != nil {
		return models.Order{}, fuego.BadRequestError{Detail: err.Error()}
	}

	order, err := s.store.createOrder(identity(c), body)
	if err != nil {
		var rej rejection
		if errors.As(err, &rej) {
			return models.Order{}, fuego.BadRequestError{Detail: rej.Error()}
		}
		return models.Order{}, fuego.InternalServerError{Detail: err.Error()}
	}

	s.log.Info().Str("order", order.OrderNumber).Float64("total", order.Total()).Msg("mockbackend: order created")
	return *order, nil
}

func (s *Server) listOrders(c fuego.ContextNoBody) (OrdersResponse, error) {
	orders, err := s.store.listOrders(identity(c))
	if err != nil {
		return OrdersResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}
	return OrdersResponse{Orders: orders}, nil
}
