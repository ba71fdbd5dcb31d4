package deka

import (
	"fmt"
	"strings"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/pkg/gateway"
)

const (
	// Placeholder physicals until weight/dimension fields land on Shipment.
	defaultWeightGrams = 500
	defaultLengthCM    = 20
	defaultWidthCM     = 15
	defaultHeightCM    = 10

	maxContentsChars = 300
	homeCityID       = 447 // Tehran
)

// cityIDs maps city names to Deka numeric codes. Unknown cities fall back
// to the home city.
var cityIDs = map[string]int{
	"تهران":   447,
	"اصفهان":  123,
	"مشهد":    138,
	"شیراز":   149,
	"تبریز":   165,
	"قم":      173,
	"اهواز":   180,
	"کرج":     189,
	"رشت":     198,
	"کرمانشاه": 207,
}

// mapOrder converts the shipment aggregate to the flat Deka parcel schema.
func mapOrder(order *gateway.ShipmentOrder, provider *model.Provider) *ParcelRequest {
	cfg := provider.Config
	shipment := order.Shipment
	receptor := order.Receptor

	origin := shipment.Origin
	if origin == "" {
		origin = "تهران"
	}

	return &ParcelRequest{
		ServiceID:     cfg.Int("service_id", 5),
		ServiceType:   cfg.Int("service_type", 2),
		ContractID:    cfg.Int("contract_id", 0),
		ParcelTypeID:  cfg.Int("parcel_type_id", 1),
		PaymentTypeID: cfg.Int("payment_type_id", 3),
		CharacterType: cfg.Int("character_type", 1),
		NeedPacking:   cfg.Int("need_packing", 0),

		DestCityID:   cityID(shipment.DestinationCity),
		SourceCityID: cityID(origin),
		SerialNo:     shipment.SystemOrderID,

		SenderFirstName: valueOr(receptor.FirstName, "فرستنده"),
		SenderLastName:  receptor.LastName,
		SenderAddress:   valueOr(receptor.CompanyName, "تهران"),
		SenderMobile:    valueOr(receptor.Mobile, "09123456789"),

		ReceiverFirstName:  shipment.CustomerFirstName,
		ReceiverLastName:   shipment.CustomerLastName,
		ReceiverAddress:    shipment.Address,
		ReceiverMobile:     shipment.Mobile,
		ReceiverStreet:     truncateChars(shipment.Address, 100),
		ReceiverPostalCode: shipment.Postcode,

		Weight:      defaultWeightGrams,
		Length:      defaultLengthCM,
		Width:       defaultWidthCM,
		Height:      defaultHeightCM,
		OutsizeFlag: 0,

		ContentAmount: tomanToRial(shipment.TotalPrice),
		Contents:      contentsFromItems(order.Items),

		SideServices:   []int{},
		SendPlaceFlag:  1,
		BoxID:          cfg["box_id"],
		CustomerHasBox: cfg.Int("customer_has_box", 1),
	}
}

// tomanToRial converts the domain's major currency unit to the integration's
// minor unit.
func tomanToRial(toman float64) int {
	return int(toman * 10)
}

// cityID resolves a city name to its Deka numeric code.
func cityID(name string) int {
	if id, ok := cityIDs[name]; ok {
		return id
	}
	return homeCityID
}

// contentsFromItems builds the free-text parcel contents from the line
// items: "name (qty)" pairs joined with the Persian comma, capped at 300
// characters without splitting a multi-byte character.
func contentsFromItems(items []model.OrderItem) string {
	if len(items) == 0 {
		return "مرسوله"
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		name := "محصول"
		if item.Pricing != nil && item.Pricing.ItemName != "" {
			name = item.Pricing.ItemName
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", name, qty))
	}

	return truncateChars(strings.Join(parts, "، "), maxContentsChars)
}

// truncateChars caps s at n characters, counting runes so the cut never
// lands inside an encoded character.
func truncateChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
