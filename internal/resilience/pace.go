package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Pacer spaces successive calls to an external service at least interval
// apart. The first call is never delayed. A zero interval disables pacing.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer for the given minimum interval.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "pacer: wait")
	}
	return nil
}
