package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/hamta/tarabar/internal/queue"
	"github.com/hamta/tarabar/internal/store"
)

// Poller periodically sweeps every configured receptor's order source and
// enqueues one processing job per discovered order id.
type Poller struct {
	store    store.Store
	queue    queue.Queue
	logger   *otelzap.Logger
	interval time.Duration
}

// NewPoller creates a poller with the given sweep interval.
func NewPoller(st store.Store, q queue.Queue, logger *otelzap.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{store: st, queue: q, logger: logger, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled. The first
// sweep happens immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			p.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single sweep and reports how many jobs were enqueued.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	receptors, err := p.store.ListReceptors(ctx)
	if err != nil {
		return 0, err
	}

	runID := uuid.New().String()
	enqueued := 0
	for _, r := range receptors {
		if !r.OrdersAPIConfigured() {
			continue
		}
		client := NewClient(r, p.logger)
		ids, err := client.FetchOrderIDs(ctx)
		if err != nil {
			if !errors.Is(err, ErrNotConfigured) {
				p.logger.Error("Failed to fetch order ids",
					zap.String("run_id", runID),
					zap.Int64("receptor_id", r.ID),
					zap.Error(err))
			}
			continue
		}
		for _, id := range ids {
			if err := p.queue.Enqueue(ctx, queue.NewProcessOrder(r.ID, id)); err != nil {
				p.logger.Error("Failed to enqueue order",
					zap.String("run_id", runID),
					zap.Int64("receptor_id", r.ID),
					zap.String("order_id", id),
					zap.Error(err))
				continue
			}
			enqueued++
		}
	}

	p.logger.Info("Ingestion sweep finished",
		zap.String("run_id", runID),
		zap.Int("jobs_enqueued", enqueued))
	return enqueued, nil
}

func (p *Poller) sweep(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error("Ingestion sweep failed", zap.Error(err))
	}
}
