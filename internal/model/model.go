// Package model defines the aggregates shared by ingestion, the workflow
// engine and the provider dispatch flow.
package model

import (
	"crypto/rand"
	"time"
)

// ShipmentStatus represents the lifecycle state of a shipment.
type ShipmentStatus string

const (
	StatusPending    ShipmentStatus = "pending"
	StatusProcessing ShipmentStatus = "processing"
	StatusCompleted  ShipmentStatus = "completed"
	StatusCancelled  ShipmentStatus = "cancelled"
)

// Receptor is an upstream partner whose orders are ingested and for whom a
// workflow and provider set are configured.
type Receptor struct {
	ID              int64
	FirstName       string
	LastName        string
	CompanyName     string
	Mobile          string
	AllowedIP       string
	Username        string
	OrdersBaseURL   string
	OrdersAuthToken string
	ProviderIDs     []int64 // authorized provider set
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrdersAPIConfigured reports whether the receptor carries enough
// configuration to talk to its order source API.
func (r *Receptor) OrdersAPIConfigured() bool {
	return r.OrdersBaseURL != "" && r.OrdersAuthToken != ""
}

// Shipment is the internal record of one external order.
type Shipment struct {
	ID                int64
	ReceptorID        int64
	SystemOrderID     string // ORD- + 10 uppercase alphanumerics, globally unique
	SourceOrderID     string // external order id, unique per receptor
	CustomerFirstName string
	CustomerLastName  string
	Origin            string
	DestinationCity   string
	Address           string
	Postcode          string
	Mobile            string
	TotalPrice        float64
	Status            ShipmentStatus

	// Provider linkage, set by the dispatch flow.
	ProviderID             int64
	ProviderTrackingNumber string
	ProviderOrderID        string
	SentToProviderAt       *time.Time
	ProviderResponse       map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerFullName joins the customer name fields.
func (s *Shipment) CustomerFullName() string {
	if s.CustomerFirstName == "" {
		return s.CustomerLastName
	}
	return s.CustomerFirstName + " " + s.CustomerLastName
}

const systemOrderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSystemOrderID generates a fresh system order identifier. Uniqueness is
// enforced by the store, which regenerates on collision.
func NewSystemOrderID() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = systemOrderIDAlphabet[int(b)%len(systemOrderIDAlphabet)]
	}
	return "ORD-" + string(buf)
}

// OrderItem is one line item of a shipment. Product identity and quantity
// live here; the financial snapshot lives in OrderItemPricing so upstream
// price changes never alter a stored order.
type OrderItem struct {
	ID           int64
	ShipmentID   int64
	SourceItemID string
	ProductID    int64
	VariationID  int64
	Quantity     int
	SKU          string
	Pricing      *OrderItemPricing
}

// OrderItemPricing is the financial snapshot of one line item, captured at
// ingestion time.
type OrderItemPricing struct {
	ID          int64
	OrderItemID int64
	ItemName    string
	UnitPrice   float64
	Quantity    int
	Subtotal    float64
	Discount    float64
	Tax         float64
	Total       float64
	Currency    string
}

// ResolveTotal fills Total from the other components when it was not
// supplied: total = subtotal + tax - discount.
func (p *OrderItemPricing) ResolveTotal() {
	if p.Total == 0 {
		p.Total = p.Subtotal + p.Tax - p.Discount
	}
}

// Provider is a third-party logistics carrier integration.
type Provider struct {
	ID          int64
	Name        string
	Code        string // unique, resolves the gateway implementation
	APIBaseURL  string
	APIUsername string
	APIPassword SealedCredential // encrypted at rest
	APIKey      string
	IsActive    bool
	Config      ProviderConfig
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProviderConfig carries integration-specific settings (service and contract
// identifiers, packaging flags). Values arrive as free-form JSON; the typed
// accessors coerce the usual encodings.
type ProviderConfig map[string]any

// Int returns the config value under key as an int, or def when absent or
// not numeric.
func (c ProviderConfig) Int(key string, def int) int {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// String returns the config value under key as a string, or def when absent.
func (c ProviderConfig) String(key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}
