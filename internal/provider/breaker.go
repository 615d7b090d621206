package provider

import (
	"context"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Guarded wraps an adapter with a circuit breaker. Once the breaker opens,
// Fetch fails with a fatal *Error so the run stops instead of walking the
// remaining queries against a provider that is down.
type Guarded struct {
	Adapter
	breaker *resilience.CircuitBreaker
}

// WithBreaker returns a Guarded adapter.
func WithBreaker(a Adapter, cb *resilience.CircuitBreaker) *Guarded {
	return &Guarded{Adapter: a, breaker: cb}
}

// Fetch implements Adapter.
func (g *Guarded) Fetch(ctx context.Context, query string, cursor Cursor) (Page, error) {
	if err := g.breaker.Allow(); err != nil {
		return Page{}, wrapErr(g.Name(), query, err)
	}
	page, err := g.Adapter.Fetch(ctx, query, cursor)
	if ctx.Err() == nil {
		g.breaker.Record(err)
	}
	return page, err
}
