package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// OrderStatus represents the backend processing state of an order.
type OrderStatus string

// OrderStatus constants as returned by the backend.
const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusDone      OrderStatus = "done"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatusText = map[OrderStatus]string{
	OrderStatusNew:       "Новый",
	OrderStatusAccepted:  "Принят",
	OrderStatusDone:      "Выполнен",
	OrderStatusCancelled: "Отменен",
}

// Text returns the human-readable status, falling back to the raw value.
func (s OrderStatus) Text() string {
	if t, ok := orderStatusText[s]; ok {
		return t
	}
	return string(s)
}

// OrderProduct is the product reference inside an order item.
// The backend sends either a bare product uuid or an embedded product object.
type OrderProduct struct {
	GUID string `json:"guid"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts a string guid or an object.
func (p *OrderProduct) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.GUID)
	}
	type plain OrderProduct
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = OrderProduct(v)
	return nil
}

// Label is the product name, or its guid when the backend did not expand it.
func (p OrderProduct) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.GUID
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	Product  OrderProduct `json:"product"`
	Quantity int          `json:"quantity"`
	Price    float64      `json:"price"`
}

// Order is a placed order as listed by the backend.
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"order_number,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Status      OrderStatus `json:"order_status"`
	Items       []OrderItem `json:"items"`
	Commentary  string      `json:"commentary,omitempty"`
}

// Total sums price*quantity over all items.
func (o Order) Total() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Title is the order number, or the id when no number was assigned.
func (o Order) Title() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID
}

// CreateOrderItem is the wire form of an order line: product uuid, quantity, unit price.
type CreateOrderItem struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CreateOrderRequest is the body of POST /api/telegram/create-order/.
type CreateOrderRequest struct {
	Items      []CreateOrderItem `json:"items"`
	Commentary string            `json:"commentary"`
}
