// Package gateway provides an abstraction layer for logistics providers.
package gateway

import (
	"context"
	"time"

	"github.com/hamta/tarabar/internal/model"
)

// Gateway defines the interface that all provider integrations must
// implement. An instance is bound to one Provider record's credentials.
type Gateway interface {
	// Name returns the provider code (e.g. "deka").
	Name() string

	// CreateShipment registers the shipment with the provider and returns
	// the assigned tracking identifiers. It fails on transport failure,
	// remote rejection, or a missing required response field.
	CreateShipment(ctx context.Context, order *ShipmentOrder) (*CreateResult, error)

	// GetTrackingStatus returns the provider's tracking information for a
	// previously created shipment.
	GetTrackingStatus(ctx context.Context, trackingNumber string) (*TrackingInfo, error)

	// CancelShipment voids a shipment. It returns false without an error
	// when the remote explicitly reports non-success, and an error only on
	// transport failure.
	CancelShipment(ctx context.Context, trackingNumber string, reasonID int) (bool, error)

	// ValidateCredentials checks the stored credentials against the remote.
	// It never fails: any error is logged and reported as false.
	ValidateCredentials(ctx context.Context) bool
}

// ShipmentOrder bundles everything an integration needs to register one
// shipment: the shipment aggregate, its line items and the owning receptor
// (sender identity).
type ShipmentOrder struct {
	Shipment *model.Shipment
	Items    []model.OrderItem
	Receptor *model.Receptor
}

// CreateResult is the normalized outcome of a successful CreateShipment.
type CreateResult struct {
	TrackingNumber  string
	ReferenceNumber string
	Amount          float64
	Tax             float64
	Raw             map[string]any // provider response, persisted verbatim
}

// TrackingInfo is the normalized tracking payload.
type TrackingInfo struct {
	TrackingNumber string
	Status         string
	Events         []TrackingEvent
	Raw            map[string]any
}

// TrackingEvent is a single tracking history entry.
type TrackingEvent struct {
	Timestamp   time.Time
	Description string
	Location    string
}

// VoidReason is one cancellation reason accepted by a provider.
type VoidReason struct {
	ID    int
	Title string
}

// VoidReasonLister is an optional capability: integrations whose cancel
// endpoint requires a reason id expose the valid set through it.
type VoidReasonLister interface {
	ListVoidReasons(ctx context.Context) ([]VoidReason, error)
}

// TokenCache is the shared cache used by token-authenticated integrations.
// Entries are read-mostly and short-lived; recomputing on a cache race is
// acceptable, so implementations need no locking beyond their own safety.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}
