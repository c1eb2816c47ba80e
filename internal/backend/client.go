// Package backend is the HTTP client for the loyalty program REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// API paths.
const (
	PathToken             = "/api/token/"
	PathCheckTelegramLink = "/api/telegram/check-telegram-link/"
	PathLinkTelegram      = "/api/telegram/link-telegram/"
	PathProducts          = "/api/telegram/products/"
	PathProductCategories = "/api/telegram/product-categories/"
	PathCreateOrder       = "/api/telegram/create-order/"
	PathOrders            = "/api/telegram/orders/"
)

var (
	// ErrUnauthorized is returned for HTTP 401. It is distinct from success:false.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport wraps network, timeout and decoding failures.
	ErrTransport = errors.New("transport failure")
)

// APIError is a non-2xx, non-401 response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// CheckLinkResponse is the body of the check-telegram-link call.
type CheckLinkResponse struct {
	Success     bool                `json:"success"`
	IsLinked    bool                `json:"is_linked"`
	Participant *models.Participant `json:"participant,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// Linked reports whether the response confirms a link with a participant payload.
func (r *CheckLinkResponse) Linked() bool {
	return r != nil && r.Success && r.IsLinked && r.Participant != nil
}

// LinkTelegramRequest is sent by the bot once the user shared their contact.
type LinkTelegramRequest struct {
	TelegramID  string `json:"telegram_id"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Username    string `json:"username,omitempty"`
}

// LinkTelegramResponse is the result of link-telegram.
type LinkTelegramResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Participant *models.Participant `json:"participant,omitempty"`
}

// Config holds backend client configuration.
type Config struct {
	BaseURL  string
	InitData string
	Timeout  time.Duration
	RPS      float64
}

// Client talks to the /api/telegram endpoints on behalf of the mini app.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *RateLimiter
	log     *logger.Logger

	initData string
	mu       sync.RWMutex
}

// NewClient creates a new backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := DefaultRateLimiter()
	if cfg.RPS > 0 {
		limiter = NewRateLimiter(cfg.RPS, 3)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		log:      logger.Get(),
		initData: cfg.InitData,
	}
}

// SetInitData replaces the host identity token used for the tma authorization header.
func (c *Client) SetInitData(initData string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initData = initData
}

// HasIdentity reports whether an identity token is configured.
func (c *Client) HasIdentity() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initData != ""
}

func (c *Client) tmaAuth() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "tma " + c.initData
}

// CheckLink asks the backend whether this identity is linked to a participant.
func (c *Client) CheckLink(ctx context.Context) (*CheckLinkResponse, error) {
	var resp CheckLinkResponse
	if err := c.do(ctx, http.MethodPost, PathCheckTelegramLink, c.tmaAuth(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Products returns the product catalog.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, PathProducts, c.tmaAuth(), nil, &raw); err != nil {
		return nil, err
	}
	var out []models.Product
	if err := decodeList(raw, "products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Categories returns the product categories.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, PathProductCategories, c.tmaAuth(), nil, &raw); err != nil {
		return nil, err
	}
	var out []models.Category
	if err := decodeList(raw, "categories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders returns the participant's order history.
func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, PathOrders, c.tmaAuth(), nil, &raw); err != nil {
		return nil, err
	}
	var out []models.Order
	if err := decodeList(raw, "orders", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrder places an order. The backend answers 201 on success and 400 with a detail
// message when the order is rejected (e.g. insufficient balance).
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, PathCreateOrder, c.tmaAuth(), req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// SystemToken obtains a bearer token for the bot system user.
func (c *Client) SystemToken(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, PathToken, "", body, &resp); err != nil {
		return "", fmt.Errorf("get system token: %w", err)
	}
	if resp.Access == "" {
		return "", fmt.Errorf("get system token: empty access token")
	}
	return resp.Access, nil
}

// LinkTelegram associates a telegram account with a participant by phone number.
// This is the bot side of the flow: it runs once the user shared their contact.
func (c *Client) LinkTelegram(ctx context.Context, token string, req LinkTelegramRequest) (*LinkTelegramResponse, error) {
	var resp LinkTelegramResponse
	if err := c.do(ctx, http.MethodPost, PathLinkTelegram, "Bearer "+token, req, &resp); err != nil {
		return nil, fmt.Errorf("link telegram: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path, auth string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrTransport, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			c.limiter.SetRetryAfter(secs)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("backend: non-2xx response")
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTransport, path, err)
	}
	return nil
}

// decodeList accepts either a bare JSON array or an object wrapping it under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrTransport, key, err)
		}
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTransport, key, err)
	}
	inner, ok := wrapper[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(inner, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTransport, key, err)
	}
	return nil
}

// errorDetail extracts "detail" or "message" from an error body.
func errorDetail(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Message
}
