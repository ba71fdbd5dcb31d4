// Package store provides persistence for receptors, shipments, providers and
// workflows. Two implementations exist: Postgres for production and Memory
// for tests and local runs without a DATABASE_URL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamta/tarabar/internal/model"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateOrder is returned by CreateShipment when a shipment with the
// same (receptor_id, source_order_id) pair already exists.
var ErrDuplicateOrder = errors.New("duplicate source order")

// ErrProviderInUse is returned by DeleteProvider while any shipment still
// references the provider.
var ErrProviderInUse = errors.New("provider referenced by shipments")

// ErrInvalidWorkflow is returned by SaveWorkflow when a step action carries
// an unknown kind.
var ErrInvalidWorkflow = errors.New("workflow contains unknown action kind")

// Store is the persistence interface shared by ingestion, the workflow
// engine and the dispatch flow.
type Store interface {
	// Receptors
	GetReceptor(ctx context.Context, id int64) (*model.Receptor, error)
	ListReceptors(ctx context.Context) ([]*model.Receptor, error)
	SaveReceptor(ctx context.Context, r *model.Receptor) error
	DeleteReceptor(ctx context.Context, id int64) error

	// Shipments
	CreateShipment(ctx context.Context, s *model.Shipment, items []model.OrderItem) error
	GetShipment(ctx context.Context, id int64) (*model.Shipment, error)
	FindShipmentBySourceOrder(ctx context.Context, receptorID int64, sourceOrderID string) (*model.Shipment, error)
	UpdateShipment(ctx context.Context, s *model.Shipment) error
	ListShipmentItems(ctx context.Context, shipmentID int64) ([]model.OrderItem, error)

	// Providers
	GetProvider(ctx context.Context, id int64) (*model.Provider, error)
	ListProviders(ctx context.Context, activeOnly bool) ([]*model.Provider, error)
	SaveProvider(ctx context.Context, p *model.Provider) error
	DeleteProvider(ctx context.Context, id int64) error

	// Workflows
	GetWorkflowForReceptor(ctx context.Context, receptorID int64) (*model.Workflow, error)
	SaveWorkflow(ctx context.Context, w *model.Workflow) error
}

// maxOrderIDRetries bounds regenerate-and-retry on system order id collision.
const maxOrderIDRetries = 5

// errSystemOrderIDExhausted is returned when every regenerated id collided.
var errSystemOrderIDExhausted = errors.New("could not allocate unique system order id")

// validateWorkflow enforces the closed action-kind set before a workflow is
// persisted. Shared by both implementations.
func validateWorkflow(w *model.Workflow) error {
	for _, step := range w.Steps {
		for _, action := range step.Actions {
			if !action.Kind.Valid() {
				return fmt.Errorf("%w: %q", ErrInvalidWorkflow, action.Kind)
			}
		}
	}
	return nil
}
