// Package retailer holds the concrete retailer adapters and their registry.
// Each adapter owns its own rate-limiter state; one retailer's load never
// throttles another's.
package retailer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/skinmatch/backend/internal/domain"
)

// Registry maps retailer identifiers to their adapters. Constructed once at
// startup and passed into the verifier; registration of a duplicate
// retailer is a construction error, not a silent overwrite.
type Registry struct {
	adapters map[domain.Retailer]domain.RetailerAdapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...domain.RetailerAdapter) (*Registry, error) {
	r := &Registry{adapters: make(map[domain.Retailer]domain.RetailerAdapter)}
	for _, adapter := range adapters {
		name := adapter.Retailer()
		if _, exists := r.adapters[name]; exists {
			return nil, fmt.Errorf("adapter for retailer %q registered twice", name)
		}
		r.adapters[name] = adapter
	}
	return r, nil
}

// Lookup resolves the adapter for a retailer.
func (r *Registry) Lookup(retailer domain.Retailer) (domain.RetailerAdapter, bool) {
	adapter, ok := r.adapters[retailer]
	return adapter, ok
}

// throttle bounds an adapter's outbound traffic: a semaphore caps
// simultaneous in-flight requests and a rate limiter enforces minimum
// spacing between request starts.
type throttle struct {
	inflight chan struct{}
	limiter  *rate.Limiter
}

func newThrottle(maxInFlight int, minInterval time.Duration) *throttle {
	return &throttle{
		inflight: make(chan struct{}, maxInFlight),
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// acquire blocks until a slot and a send window are available, or the
// context expires. Callers must release after the request completes.
func (t *throttle) acquire(ctx context.Context) error {
	select {
	case t.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		<-t.inflight
		return err
	}
	return nil
}

func (t *throttle) release() {
	<-t.inflight
}
