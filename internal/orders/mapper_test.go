package orders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamta/tarabar/internal/model"
)

func TestShipmentFromOrder(t *testing.T) {
	raw := `{
		"id": 100924,
		"status": "processing",
		"total": 2000,
		"billing": {"first_name":"Ali","last_name":"Rezai","phone":"09121234567","city":"Tehran"},
		"line_items": [{"id":1,"product_id":55,"quantity":2,"price":1000,"subtotal":2000,"total":2000,"name":"Widget"}]
	}`
	var order Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))

	s, items := ShipmentFromOrder(3, &order)

	assert.Equal(t, int64(3), s.ReceptorID)
	assert.Equal(t, "100924", s.SourceOrderID)
	assert.Equal(t, "Ali", s.CustomerFirstName)
	assert.Equal(t, "Rezai", s.CustomerLastName)
	assert.Equal(t, "09121234567", s.Mobile)
	assert.Equal(t, "Tehran", s.DestinationCity)
	assert.Equal(t, "تهران", s.Origin)
	assert.Equal(t, 2000.0, s.TotalPrice)
	assert.Equal(t, model.StatusProcessing, s.Status)

	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].SourceItemID)
	assert.Equal(t, int64(55), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	require.NotNil(t, items[0].Pricing)
	assert.Equal(t, "Widget", items[0].Pricing.ItemName)
	assert.Equal(t, 2000.0, items[0].Pricing.Total)
	assert.Equal(t, "IRR", items[0].Pricing.Currency)
}

func TestShipmentFromOrder_ShippingPreferred(t *testing.T) {
	order := &Order{
		ID: "5",
		Billing: OrderParty{
			FirstName: "Ali", LastName: "Rezai", Phone: "09121234567",
			City: "تهران", Address1: "خیابان انقلاب", Postcode: "11111",
		},
		Shipping: OrderParty{City: "شیراز", Address1: "بلوار زند"},
	}

	s, _ := ShipmentFromOrder(1, order)

	assert.Equal(t, "شیراز", s.DestinationCity)
	assert.Equal(t, "بلوار زند", s.Address)
	// shipping block has no postcode, billing fills in
	assert.Equal(t, "11111", s.Postcode)
	assert.Equal(t, "09121234567", s.Mobile)
}

func TestShipmentFromOrder_TotalDerivation(t *testing.T) {
	order := &Order{
		ID: "9",
		LineItems: []LineItem{
			{Name: "Widget", Subtotal: 2000, TotalTax: 300, Total: 0},
		},
	}

	_, items := ShipmentFromOrder(1, order)
	require.Len(t, items, 1)
	assert.Equal(t, 2300.0, items[0].Pricing.Total)
}

func TestShipmentFromOrder_ZeroQuantityDefaultsToOne(t *testing.T) {
	order := &Order{ID: "9", LineItems: []LineItem{{Name: "Widget"}}}

	_, items := ShipmentFromOrder(1, order)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 1, items[0].Pricing.Quantity)
}

func TestFlexTypes(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"100924","total":"2000.50"}`), &o))
	assert.Equal(t, FlexString("100924"), o.ID)
	assert.Equal(t, FlexFloat(2000.50), o.Total)

	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"total":1500}`), &o))
	assert.Equal(t, FlexString("42"), o.ID)
	assert.Equal(t, FlexFloat(1500), o.Total)

	require.NoError(t, json.Unmarshal([]byte(`{"id":null,"total":"free"}`), &o))
	assert.Equal(t, FlexString(""), o.ID)
	assert.Equal(t, FlexFloat(0), o.Total)
}
