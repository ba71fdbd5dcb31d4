package orders

import (
	"github.com/hamta/tarabar/internal/model"
)

// homeCity is the default shipment origin.
const homeCity = "تهران"

// defaultCurrency labels pricing snapshots when the source omits one.
const defaultCurrency = "IRR"

// ShipmentFromOrder maps one external order into the shipment aggregate.
// Destination fields prefer the shipping block and fall back to billing
// field by field; name and phone prefer billing. Line items are split into
// product identity and a pricing snapshot.
func ShipmentFromOrder(receptorID int64, order *Order) (*model.Shipment, []model.OrderItem) {
	s := &model.Shipment{
		ReceptorID:        receptorID,
		SourceOrderID:     string(order.ID),
		CustomerFirstName: firstNonEmpty(order.Billing.FirstName, order.Shipping.FirstName),
		CustomerLastName:  firstNonEmpty(order.Billing.LastName, order.Shipping.LastName),
		Origin:            homeCity,
		DestinationCity:   firstNonEmpty(order.Shipping.City, order.Billing.City),
		Address:           firstNonEmpty(order.Shipping.Address1, order.Billing.Address1),
		Postcode:          firstNonEmpty(order.Shipping.Postcode, order.Billing.Postcode),
		Mobile:            firstNonEmpty(order.Billing.Phone, order.Shipping.Phone),
		TotalPrice:        float64(order.Total),
		Status:            model.StatusProcessing,
	}

	currency := order.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	items := make([]model.OrderItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		quantity := int(li.Quantity)
		if quantity == 0 {
			quantity = 1
		}
		pricing := &model.OrderItemPricing{
			ItemName:  li.Name,
			UnitPrice: float64(li.Price),
			Quantity:  quantity,
			Subtotal:  float64(li.Subtotal),
			Tax:       float64(li.TotalTax),
			Total:     float64(li.Total),
			Currency:  currency,
		}
		pricing.ResolveTotal()

		items = append(items, model.OrderItem{
			SourceItemID: string(li.ID),
			ProductID:    int64(li.ProductID),
			VariationID:  int64(li.VariationID),
			Quantity:     quantity,
			SKU:          li.SKU,
			Pricing:      pricing,
		})
	}
	return s, items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
