package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", InitData: "user=42", Timeout: time.Second, RPS: 100})
}

func TestClient_CheckLink_Linked(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathCheckTelegramLink, r.URL.Path)
		assert.Equal(t, "tma user=42", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"is_linked":true,"participant":{"phone_number":"+71234567890","balance":500}}`))
	})

	resp, err := c.CheckLink(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Linked())
	assert.Equal(t, "+71234567890", resp.Participant.PhoneNumber)
	assert.Equal(t, 500.0, resp.Participant.Balance)
}

func TestClient_CheckLink_LinkedWithoutParticipant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"is_linked":true}`))
	})

	resp, err := c.CheckLink(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Linked(), "a link without participant payload is not a confirmed link")
}

func TestClient_CheckLink_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Ошибка Telegram-аутентификации"}`))
	})

	_, err := c.CheckLink(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestClient_CheckLink_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := c.CheckLink(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_TooManyRequestsPausesRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"slow down"}`))
	})

	_, err := c.CheckLink(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.CheckLink(ctx)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CheckLink_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second, RPS: 100})
	_, err := c.CheckLink(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_Products_ArrayOrWrapped(t *testing.T) {
	bodies := []string{
		`[{"guid":"1","name":"Кофеварка","price":2500,"is_available":true}]`,
		`{"products":[{"guid":"1","name":"Кофеварка","price":2500,"is_available":true}]}`,
	}

	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(body))
		})

		products, err := c.Products(context.Background())
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "Кофеварка", products[0].Name)
	}
}

func TestClient_Categories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathProductCategories, r.URL.Path)
		_, _ = w.Write([]byte(`[{"guid":"1","name":"Для дома"},{"guid":"2","name":"Электроника"}]`))
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestClient_CreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "без звонка", req.Commentary)
		require.Len(t, req.Items, 1)
		assert.Equal(t, "p1", req.Items[0].Product)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o1","order_status":"new","items":[{"product":"p1","quantity":2,"price":100}]}`))
	})

	order, err := c.CreateOrder(context.Background(), models.CreateOrderRequest{
		Items:      []models.CreateOrderItem{{Product: "p1", Quantity: 2, Price: 100}},
		Commentary: "без звонка",
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, 200.0, order.Total())
}

func TestClient_CreateOrder_BadRequestDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Недостаточно бонусов"}`))
	})

	_, err := c.CreateOrder(context.Background(), models.CreateOrderRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Недостаточно бонусов", apiErr.Detail)
}

func TestClient_SystemTokenAndLink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathToken:
			_, _ = w.Write([]byte(`{"access":"tok"}`))
		case PathLinkTelegram:
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"success":true,"participant":{"phone_number":"+79990000000","balance":0}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	token, err := c.SystemToken(context.Background(), "bot@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	resp, err := c.LinkTelegram(context.Background(), token, LinkTelegramRequest{TelegramID: "42", PhoneNumber: "+79990000000"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClient_SetInitData(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost"})
	assert.False(t, c.HasIdentity())

	c.SetInitData("query_id=1")
	assert.True(t, c.HasIdentity())
	assert.Equal(t, "tma query_id=1", c.tmaAuth())
}
