package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/hamta/tarabar/internal/model"
	"golang.org/x/sync/errgroup"
)

// Factory builds a gateway bound to one provider record's credentials.
type Factory func(provider *model.Provider) Gateway

// Registry maps provider codes to gateway factories. New integrations
// register by code without touching call sites.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an integration under its provider code.
func (r *Registry) Register(code string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[code] = f
}

// Resolve returns a gateway for the given provider record.
func (r *Registry) Resolve(provider *model.Provider) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[provider.Code]; ok {
		return f(provider), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, provider.Code)
}

// Codes returns the registered provider codes.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	return codes
}

// Count returns the number of registered integrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// ValidateAll checks credentials for the given providers in parallel and
// returns the result per provider id. Unregistered codes report false
// rather than failing the sweep.
func (r *Registry) ValidateAll(ctx context.Context, providers []*model.Provider) map[int64]bool {
	results := make(map[int64]bool, len(providers))
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			ok := false
			if gw, err := r.Resolve(p); err == nil {
				ok = gw.ValidateCredentials(ctx)
			}
			mu.Lock()
			results[p.ID] = ok
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}
