package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/queue"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/internal/telemetry"
)

// Service turns external orders into shipments. ProcessOrder runs as a
// queue job, so its error contract decides retries: configuration gaps and
// absent orders complete without error, store and transport failures
// propagate.
type Service struct {
	store   store.Store
	queue   queue.Queue
	logger  *otelzap.Logger
	metrics *telemetry.Metrics // optional
}

// NewService creates an ingestion service. metrics may be nil.
func NewService(st store.Store, q queue.Queue, logger *otelzap.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{store: st, queue: q, logger: logger, metrics: metrics}
}

// ProcessOrder ingests one external order for the receptor: fetch details,
// dedup against existing shipments, create the aggregate and hand off to
// the workflow when one is active.
func (s *Service) ProcessOrder(ctx context.Context, receptorID int64, orderID string) error {
	receptor, err := s.store.GetReceptor(ctx, receptorID)
	if err != nil {
		return fmt.Errorf("loading receptor %d: %w", receptorID, err)
	}

	if !receptor.OrdersAPIConfigured() {
		s.logger.Warn("Receptor API not configured",
			zap.Int64("receptor_id", receptorID),
			zap.String("order_id", orderID))
		return nil
	}

	client := NewClient(receptor, s.logger)
	order, err := client.FetchOrderDetails(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		s.logger.Warn("Order details not found",
			zap.Int64("receptor_id", receptorID),
			zap.String("order_id", orderID))
		s.record("absent")
		return nil
	}

	if existing, err := s.store.FindShipmentBySourceOrder(ctx, receptorID, string(order.ID)); err == nil {
		s.logger.Info("Order already exists",
			zap.Int64("receptor_id", receptorID),
			zap.String("order_id", orderID),
			zap.Int64("shipment_id", existing.ID))
		s.record("duplicate")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking existing shipment: %w", err)
	}

	shipment, items := ShipmentFromOrder(receptorID, order)
	if err := s.store.CreateShipment(ctx, shipment, items); err != nil {
		if errors.Is(err, store.ErrDuplicateOrder) {
			// raced with a concurrent ingestion of the same order
			s.record("duplicate")
			return nil
		}
		s.record("failed")
		return fmt.Errorf("creating shipment: %w", err)
	}
	s.record("created")

	s.logger.Info("Order processed",
		zap.Int64("receptor_id", receptorID),
		zap.String("order_id", orderID),
		zap.Int64("shipment_id", shipment.ID),
		zap.String("system_order_id", shipment.SystemOrderID))

	s.dispatchWorkflow(ctx, receptor, shipment)
	return nil
}

// dispatchWorkflow enqueues a workflow run when the receptor has an active
// workflow. A dispatch failure must not fail the ingestion; the order is
// already saved.
func (s *Service) dispatchWorkflow(ctx context.Context, receptor *model.Receptor, shipment *model.Shipment) {
	w, err := s.store.GetWorkflowForReceptor(ctx, receptor.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Workflow lookup failed but order was saved",
				zap.Int64("receptor_id", receptor.ID),
				zap.Int64("shipment_id", shipment.ID),
				zap.Error(err))
		}
		return
	}
	if !w.IsActive {
		return
	}
	if err := s.queue.Enqueue(ctx, queue.NewExecuteWorkflow(receptor.ID, shipment.ID)); err != nil {
		s.logger.Warn("Workflow dispatch failed but order was saved",
			zap.Int64("receptor_id", receptor.ID),
			zap.Int64("shipment_id", shipment.ID),
			zap.Error(err))
	}
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordIngestion(outcome)
	}
}
