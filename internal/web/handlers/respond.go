package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blockedby/loyalty-miniapp/internal/cart"
	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/storefront"
)

// respondJSON is a helper function to respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = err // Client disconnected
	}
}

// respondError is a helper function to respond with a JSON error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps storefront errors to a status and a user-facing message.
func respondServiceError(w http.ResponseWriter, err error) {
	var rejected *storefront.OrderRejectedError

	switch {
	case errors.Is(err, storefront.ErrAuthRequired), errors.Is(err, linkstate.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "Требуется авторизация")
	case errors.Is(err, storefront.ErrPhoneRequired):
		respondError(w, http.StatusForbidden, "Требуется номер телефона")
	case errors.Is(err, storefront.ErrProductNotFound), errors.Is(err, cart.ErrNotInCart):
		respondError(w, http.StatusNotFound, "Товар не найден")
	case errors.Is(err, cart.ErrProductUnavailable):
		respondError(w, http.StatusConflict, "Этот товар временно отсутствует")
	case errors.Is(err, storefront.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "Корзина пуста")
	case errors.Is(err, storefront.ErrInsufficientBalance):
		respondError(w, http.StatusUnprocessableEntity, "Недостаточно средств для оплаты")
	case errors.Is(err, storefront.ErrCommentTooLong):
		respondError(w, http.StatusBadRequest, "Комментарий слишком длинный")
	case errors.As(err, &rejected):
		msg := rejected.Detail
		if msg == "" {
			msg = "Ошибка при создании заказа"
		}
		respondError(w, http.StatusBadRequest, msg)
	case errors.Is(err, linkstate.ErrTransport):
		respondError(w, http.StatusBadGateway, "Сервер недоступен")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
