// Package dispatch implements the operator-triggered provider flow:
// handing a shipment to a logistics provider, tracking it and cancelling
// it, all through the provider gateway abstraction.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/internal/telemetry"
	"github.com/hamta/tarabar/pkg/gateway"
)

// ErrProviderInactive is returned when dispatching to a deactivated
// provider.
var ErrProviderInactive = errors.New("provider is not active")

// ErrProviderNotAuthorized is returned when the shipment's receptor is not
// authorized for the chosen provider.
var ErrProviderNotAuthorized = errors.New("provider not authorized for receptor")

// ErrNotSent is returned by Track and Cancel when the shipment was never
// handed to a provider.
var ErrNotSent = errors.New("shipment not sent to a provider")

// Service coordinates shipments and provider gateways.
type Service struct {
	store    store.Store
	registry *gateway.Registry
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics // optional
}

// NewService creates a dispatch service. metrics may be nil.
func NewService(st store.Store, registry *gateway.Registry, logger *otelzap.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{store: st, registry: registry, logger: logger, metrics: metrics}
}

// SendToProvider creates the shipment at the provider and persists the
// returned linkage. The provider must be active and authorized for the
// shipment's receptor.
func (s *Service) SendToProvider(ctx context.Context, shipmentID, providerID int64) (*gateway.CreateResult, error) {
	shipment, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("loading shipment %d: %w", shipmentID, err)
	}
	provider, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading provider %d: %w", providerID, err)
	}
	if !provider.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrProviderInactive, provider.Code)
	}

	receptor, err := s.store.GetReceptor(ctx, shipment.ReceptorID)
	if err != nil {
		return nil, fmt.Errorf("loading receptor %d: %w", shipment.ReceptorID, err)
	}
	if !authorized(receptor, providerID) {
		return nil, fmt.Errorf("%w: receptor %d, provider %s", ErrProviderNotAuthorized, receptor.ID, provider.Code)
	}

	gw, err := s.registry.Resolve(provider)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListShipmentItems(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("loading items for shipment %d: %w", shipmentID, err)
	}

	start := time.Now()
	result, err := gw.CreateShipment(ctx, &gateway.ShipmentOrder{
		Shipment: shipment,
		Items:    items,
		Receptor: receptor,
	})
	s.observe("create", provider.Code, start, err)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	shipment.ProviderID = provider.ID
	shipment.ProviderTrackingNumber = result.TrackingNumber
	shipment.ProviderOrderID = result.ReferenceNumber
	shipment.SentToProviderAt = &now
	shipment.ProviderResponse = result.Raw
	if err := s.store.UpdateShipment(ctx, shipment); err != nil {
		return nil, fmt.Errorf("persisting provider linkage: %w", err)
	}

	s.logger.Info("Shipment sent to provider",
		zap.Int64("shipment_id", shipmentID),
		zap.String("provider", provider.Code),
		zap.String("tracking_number", result.TrackingNumber))
	return result, nil
}

// Track fetches the provider-side status of a dispatched shipment.
func (s *Service) Track(ctx context.Context, shipmentID int64) (*gateway.TrackingInfo, error) {
	shipment, provider, gw, err := s.resolveSent(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := gw.GetTrackingStatus(ctx, shipment.ProviderTrackingNumber)
	s.observe("track", provider.Code, start, err)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Cancel voids the shipment at the provider. On success the provider
// linkage is cleared and the shipment is marked cancelled; a remote refusal
// reports (false, nil).
func (s *Service) Cancel(ctx context.Context, shipmentID int64, reasonID int) (bool, error) {
	shipment, provider, gw, err := s.resolveSent(ctx, shipmentID)
	if err != nil {
		return false, err
	}

	start := time.Now()
	ok, err := gw.CancelShipment(ctx, shipment.ProviderTrackingNumber, reasonID)
	s.observe("cancel", provider.Code, start, err)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Warn("Provider refused cancellation",
			zap.Int64("shipment_id", shipmentID),
			zap.String("provider", provider.Code),
			zap.String("tracking_number", shipment.ProviderTrackingNumber))
		return false, nil
	}

	shipment.Status = model.StatusCancelled
	shipment.ProviderID = 0
	shipment.ProviderTrackingNumber = ""
	shipment.ProviderOrderID = ""
	shipment.SentToProviderAt = nil
	shipment.ProviderResponse = nil
	if err := s.store.UpdateShipment(ctx, shipment); err != nil {
		return false, fmt.Errorf("clearing provider linkage: %w", err)
	}

	s.logger.Info("Shipment cancelled at provider",
		zap.Int64("shipment_id", shipmentID),
		zap.String("provider", provider.Code))
	return true, nil
}

// VoidReasons lists the cancellation reasons a provider accepts, for
// providers whose cancel endpoint requires one.
func (s *Service) VoidReasons(ctx context.Context, providerID int64) ([]gateway.VoidReason, error) {
	provider, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading provider %d: %w", providerID, err)
	}
	gw, err := s.registry.Resolve(provider)
	if err != nil {
		return nil, err
	}

	lister, ok := gw.(gateway.VoidReasonLister)
	if !ok {
		return nil, fmt.Errorf("provider %s does not publish void reasons", provider.Code)
	}

	start := time.Now()
	reasons, err := lister.ListVoidReasons(ctx)
	s.observe("void_reasons", provider.Code, start, err)
	if err != nil {
		return nil, err
	}
	return reasons, nil
}

func (s *Service) resolveSent(ctx context.Context, shipmentID int64) (*model.Shipment, *model.Provider, gateway.Gateway, error) {
	shipment, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading shipment %d: %w", shipmentID, err)
	}
	if shipment.ProviderID == 0 || shipment.ProviderTrackingNumber == "" {
		return nil, nil, nil, fmt.Errorf("%w: shipment %d", ErrNotSent, shipmentID)
	}
	provider, err := s.store.GetProvider(ctx, shipment.ProviderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading provider %d: %w", shipment.ProviderID, err)
	}
	gw, err := s.registry.Resolve(provider)
	if err != nil {
		return nil, nil, nil, err
	}
	return shipment, provider, gw, nil
}

func (s *Service) observe(operation, providerCode string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RequestDuration.WithLabelValues(operation, providerCode).Observe(time.Since(start).Seconds())
	if err != nil {
		var gwErr *gateway.Error
		kind := "unknown"
		if errors.As(err, &gwErr) {
			kind = string(gwErr.Kind)
		}
		s.metrics.RecordProviderError(providerCode, kind)
	}
}

func authorized(receptor *model.Receptor, providerID int64) bool {
	for _, id := range receptor.ProviderIDs {
		if id == providerID {
			return true
		}
	}
	return false
}
