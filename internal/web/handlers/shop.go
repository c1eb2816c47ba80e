package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// ShopHandler handles catalog, cart, checkout, orders and profile requests
type ShopHandler struct {
	shop Shop
}

// NewShopHandler creates a new ShopHandler
func NewShopHandler(shop Shop) *ShopHandler {
	return &ShopHandler{shop: shop}
}

// CartResponse is the cart with totals.
type CartResponse struct {
	Items []models.CartItem `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
}

// AddToCartRequest adds one unit of a product.
type AddToCartRequest struct {
	GUID string `json:"guid"`
}

// UpdateCartItemRequest sets the quantity of a cart line.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutRequest places the order.
type CheckoutRequest struct {
	Commentary string `json:"commentary"`
}

// OrderView is an order with the derived fields the orders screen shows.
type OrderView struct {
	models.Order
	Title      string  `json:"title"`
	StatusText string  `json:"status_text"`
	Total      float64 `json:"total"`
}

// Catalog lists products. Query params: category (slug or name), q (name search).
func (h *ShopHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.shop.Catalog(r.Context(), q.Get("category"), q.Get("q"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    len(products),
	})
}

// Categories lists product categories
func (h *ShopHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.shop.Categories(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// GetCart returns the cart
func (h *ShopHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.cartResponse())
}

// AddToCart adds a product to the cart
func (h *ShopHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GUID == "" {
		respondError(w, http.StatusBadRequest, "guid is required")
		return
	}

	if err := h.shop.AddToCart(r.Context(), req.GUID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse())
}

// UpdateCartItem sets the quantity of a cart line
func (h *ShopHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.shop.UpdateQuantity(r.Context(), chi.URLParam(r, "guid"), req.Quantity); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse())
}

// RemoveFromCart removes a cart line
func (h *ShopHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.RemoveFromCart(r.Context(), chi.URLParam(r, "guid")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse())
}

// CheckoutSummary validates the cart and returns the confirmation summary
func (h *ShopHandler) CheckoutSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := h.shop.PrepareCheckout()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Checkout places the order
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	order, err := h.shop.Checkout(r.Context(), req.Commentary)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newOrderView(*order))
}

// Orders lists orders, newest first
func (h *ShopHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.shop.Orders(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": views})
}

// Profile returns the profile screen
func (h *ShopHandler) Profile(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.shop.Profile())
}

func (h *ShopHandler) cartResponse() CartResponse {
	items := h.shop.Cart()
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return CartResponse{Items: items, Total: h.shop.CartTotal(), Count: count}
}

func newOrderView(o models.Order) OrderView {
	return OrderView{
		Order:      o,
		Title:      o.Title(),
		StatusText: o.Status.Text(),
		Total:      o.Total(),
	}
}
