// Package queue carries the background jobs of the service: processing one
// ingested order and executing one workflow run. Jobs travel as JSON
// envelopes through redis or an in-memory channel.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the handler a job is routed to.
type Kind string

const (
	KindProcessOrder    Kind = "process_order"
	KindExecuteWorkflow Kind = "execute_workflow"
)

// Job is the wire envelope of one unit of background work.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Attempt    int       `json:"attempt"`
	ReceptorID int64     `json:"receptor_id"`
	OrderID    string    `json:"order_id,omitempty"`
	ShipmentID int64     `json:"shipment_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewProcessOrder builds a job that ingests one external order.
func NewProcessOrder(receptorID int64, orderID string) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       KindProcessOrder,
		ReceptorID: receptorID,
		OrderID:    orderID,
		EnqueuedAt: time.Now(),
	}
}

// NewExecuteWorkflow builds a job that runs the receptor's workflow against
// one shipment.
func NewExecuteWorkflow(receptorID, shipmentID int64) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       KindExecuteWorkflow,
		ReceptorID: receptorID,
		ShipmentID: shipmentID,
		EnqueuedAt: time.Now(),
	}
}

// Queue transports jobs between producers and the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}

// permanentError marks a handler failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps a handler error so the worker drops the job instead of
// re-enqueueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
