package scanner

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wolfman30/spa-availability/internal/engine"
)

// politeEngine spaces page loads so a run never hammers the booking site.
type politeEngine struct {
	engine.Engine
	limiter *rate.Limiter
}

func withRateLimit(eng engine.Engine, limiter *rate.Limiter) engine.Engine {
	if limiter == nil {
		return eng
	}
	return &politeEngine{Engine: eng, limiter: limiter}
}

func (p *politeEngine) Navigate(ctx context.Context, url string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("scanner: navigation throttle: %w", err)
	}
	return p.Engine.Navigate(ctx, url)
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}
