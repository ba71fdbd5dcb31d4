package orders

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Order is one order record as delivered by a receptor's source API.
// Source systems disagree on whether numbers arrive as JSON numbers or
// strings, so the numeric fields decode both.
type Order struct {
	ID        FlexString `json:"id"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"date_created"`
	Currency  string     `json:"currency"`
	Total     FlexFloat  `json:"total"`
	Billing   OrderParty `json:"billing"`
	Shipping  OrderParty `json:"shipping"`
	LineItems []LineItem `json:"line_items"`
}

// OrderParty is a billing or shipping block.
type OrderParty struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city"`
	Address1  string `json:"address_1"`
	Postcode  string `json:"postcode"`
	Phone     string `json:"phone"`
}

// LineItem is one order line.
type LineItem struct {
	ID          FlexString `json:"id"`
	ProductID   FlexInt    `json:"product_id"`
	VariationID FlexInt    `json:"variation_id"`
	Quantity    FlexInt    `json:"quantity"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Price       FlexFloat  `json:"price"`
	Subtotal    FlexFloat  `json:"subtotal"`
	Total       FlexFloat  `json:"total"`
	TotalTax    FlexFloat  `json:"total_tax"`
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexFloat decodes a JSON number or numeric string into a float64.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt decodes a JSON number or numeric string into an int64.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var ff FlexFloat
	if err := ff.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexInt(ff)
	return nil
}

// parseOrderIDs normalizes the three known order-list shapes into a list of
// decimal id strings. ok is false for any other shape.
func parseOrderIDs(body []byte) ([]string, bool) {
	// bare numeric array
	var bare []json.Number
	if err := json.Unmarshal(body, &bare); err == nil {
		ids := make([]string, 0, len(bare))
		for _, n := range bare {
			ids = append(ids, n.String())
		}
		return ids, true
	}

	var envelope struct {
		Success *bool `json:"success"`
		Data    *struct {
			Orders []struct {
				ID FlexString `json:"id"`
			} `json:"orders"`
		} `json:"data"`
		Orders []struct {
			ID FlexString `json:"id"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}

	if envelope.Success != nil && *envelope.Success && envelope.Data != nil && envelope.Data.Orders != nil {
		ids := make([]string, 0, len(envelope.Data.Orders))
		for _, o := range envelope.Data.Orders {
			if o.ID != "" {
				ids = append(ids, string(o.ID))
			}
		}
		return ids, true
	}
	if envelope.Orders != nil {
		ids := make([]string, 0, len(envelope.Orders))
		for _, o := range envelope.Orders {
			if o.ID != "" {
				ids = append(ids, string(o.ID))
			}
		}
		return ids, true
	}
	return nil, false
}

// extractOrderPayload locates the order object inside the detail response.
// Accepted shapes: `{success,data:{result}}`, `{data:{...}}`, `{result}`,
// or a bare order object carrying id and status.
func extractOrderPayload(body []byte) (json.RawMessage, bool) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, false
	}

	if rawData, ok := root["data"]; ok {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(rawData, &data); err == nil {
			if result, ok := data["result"]; ok {
				return result, true
			}
			return rawData, true
		}
	}
	if result, ok := root["result"]; ok {
		return result, true
	}
	if _, hasID := root["id"]; hasID {
		if _, hasStatus := root["status"]; hasStatus {
			return body, true
		}
	}
	return nil, false
}
