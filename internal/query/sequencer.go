package query

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// PageResult is the outcome of one provider call.
type PageResult struct {
	Query string
	// Number is the 1-based page index within Query.
	Number int
	Page   provider.Page
	// Err is set when the call failed. The sequencer moves on to the next
	// query after a failure.
	Err error
}

// Sequencer walks the pages of each query in order.
type Sequencer struct {
	adapter  provider.Adapter
	maxPages int
	pacer    *resilience.Pacer
}

// NewSequencer creates a Sequencer. maxPages <= 0 means no page cap. The
// pacer spaces provider calls and may be nil.
func NewSequencer(a provider.Adapter, maxPages int, pacer *resilience.Pacer) *Sequencer {
	return &Sequencer{adapter: a, maxPages: maxPages, pacer: pacer}
}

// Pages yields one result per provider call. A query ends when the provider
// reports no more pages, the page cap is reached, or the call fails; a failed
// query is never retried here. Iteration stops when ctx is done or the
// consumer stops pulling.
func (s *Sequencer) Pages(ctx context.Context, queries []string) iter.Seq[PageResult] {
	return func(yield func(PageResult) bool) {
		log := zap.L().With(zap.String("provider", s.adapter.Name()))

		for _, q := range queries {
			cursor := s.adapter.Start()
			for n := 1; s.maxPages <= 0 || n <= s.maxPages; n++ {
				if err := s.pacer.Wait(ctx); err != nil {
					return
				}

				page, err := s.adapter.Fetch(ctx, q, cursor)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					log.Debug("query: fetch failed", zap.String("query", q), zap.Int("page", n), zap.Error(err))
					if !yield(PageResult{Query: q, Number: n, Err: err}) {
						return
					}
					break
				}

				if !yield(PageResult{Query: q, Number: n, Page: page}) {
					return
				}
				if !page.More {
					break
				}
				cursor = page.Next
			}
		}
	}
}
