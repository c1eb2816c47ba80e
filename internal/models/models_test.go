package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleID_StringOrNumber(t *testing.T) {
	var p TelegramProfile
	require.NoError(t, json.Unmarshal([]byte(`{"id":"123456789"}`), &p))
	assert.Equal(t, FlexibleID("123456789"), p.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":987654321}`), &p))
	assert.Equal(t, FlexibleID("987654321"), p.ID)
}

func TestOrderProduct_BareGUIDOrObject(t *testing.T) {
	var items []OrderItem
	raw := `[{"product":"b3e9","quantity":2,"price":100},{"product":{"guid":"c1","name":"Кофеварка"},"quantity":1,"price":2500}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &items))

	require.Len(t, items, 2)
	assert.Equal(t, "b3e9", items[0].Product.Label())
	assert.Equal(t, "Кофеварка", items[1].Product.Label())
	assert.Equal(t, "c1", items[1].Product.GUID)
}

func TestOrder_TotalAndTitle(t *testing.T) {
	o := Order{
		ID: "42",
		Items: []OrderItem{
			{Quantity: 2, Price: 100},
			{Quantity: 1, Price: 2500},
		},
	}
	assert.Equal(t, 2700.0, o.Total())
	assert.Equal(t, "42", o.Title())

	o.OrderNumber = "A-0042"
	assert.Equal(t, "A-0042", o.Title())
}

func TestOrderStatus_Text(t *testing.T) {
	assert.Equal(t, "Выполнен", OrderStatusDone.Text())
	assert.Equal(t, "on_hold", OrderStatus("on_hold").Text())
}

func TestCategory_Key(t *testing.T) {
	assert.Equal(t, "electronics", Category{Name: "Электроника", Slug: "electronics"}.Key())
	assert.Equal(t, "электроника", Category{Name: "Электроника"}.Key())
}

func TestParticipant_CloneIsDeep(t *testing.T) {
	p := &Participant{PhoneNumber: "+79991234567", TelegramProfile: &TelegramProfile{FirstName: "Ivan"}}
	c := p.Clone()
	c.TelegramProfile.FirstName = "Petr"

	assert.Equal(t, "Ivan", p.TelegramProfile.FirstName)
	assert.Nil(t, (*Participant)(nil).Clone())
}
