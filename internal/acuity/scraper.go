// Package acuity scrapes availability from Acuity Scheduling booking pages
// by driving the embedded react-calendar widget.
package acuity

import (
	"context"
	"path/filepath"
	"time"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/poll"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// MaxMonths is how many month views are scanned per provider: the current
// one and the next.
const MaxMonths = 2

// Waits bounds every render wait the scraper performs.
type Waits struct {
	Calendar     poll.Policy
	Element      poll.Policy
	DayIdle      time.Duration
	DayFallback  time.Duration
	NextIdle     time.Duration
	NextFallback time.Duration
	ScrollSettle time.Duration
}

// DefaultWaits matches the widget's observed render timings.
var DefaultWaits = Waits{
	Calendar:     poll.Default,
	Element:      poll.Policy{Interval: 100 * time.Millisecond, MaxAttempts: 50},
	DayIdle:      time.Second,
	DayFallback:  100 * time.Millisecond,
	NextIdle:     2 * time.Second,
	NextFallback: time.Second,
	ScrollSettle: 500 * time.Millisecond,
}

// Scraper drives one engine session. It is not safe for concurrent use.
type Scraper struct {
	eng        engine.Engine
	norm       *datetime.Normalizer
	logger     *logging.Logger
	strategies []Strategy
	waits      Waits
	sleep      poll.Sleeper
	debugDir   string
	maxMonths  int
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithStrategies replaces the time-entry extraction strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(s *Scraper) {
		s.strategies = strategies
	}
}

// WithWaits overrides the wait bounds.
func WithWaits(w Waits) Option {
	return func(s *Scraper) {
		s.waits = w
	}
}

// WithSleeper replaces the real sleep, mostly for tests.
func WithSleeper(sleep poll.Sleeper) Option {
	return func(s *Scraper) {
		s.sleep = sleep
	}
}

// WithDebugDir sets where diagnostic captures are written. Empty disables them.
func WithDebugDir(dir string) Option {
	return func(s *Scraper) {
		s.debugDir = dir
	}
}

// WithMaxMonths overrides MaxMonths.
func WithMaxMonths(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxMonths = n
		}
	}
}

// NewScraper returns a Scraper over eng.
func NewScraper(eng engine.Engine, norm *datetime.Normalizer, logger *logging.Logger, opts ...Option) *Scraper {
	if logger == nil {
		logger = logging.Default()
	}
	if norm == nil {
		norm = datetime.NewNormalizer(nil, logger)
	}
	s := &Scraper{
		eng:        eng,
		norm:       norm,
		logger:     logger,
		strategies: DefaultStrategies(),
		waits:      DefaultWaits,
		sleep:      poll.Sleep,
		maxMonths:  MaxMonths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanCalendar opens a provider's booking page and collects the slots of
// every visible month. A calendar that never renders yields no slots
// rather than an error.
func (s *Scraper) ScanCalendar(ctx context.Context, bookingURL string) ([]availability.Slot, error) {
	s.logger.Info("navigating to booking url", "url", bookingURL)
	if err := s.eng.Navigate(ctx, bookingURL); err != nil {
		return nil, err
	}
	s.AwaitCalendar(ctx)
	return s.ScanVisibleMonths(ctx, s.maxMonths)
}

// settle waits for network idle and falls back to a short fixed pause.
func (s *Scraper) settle(ctx context.Context, idle, fallback time.Duration) {
	if s.eng.WaitForNetworkIdle(ctx, idle) {
		return
	}
	_ = s.sleep(ctx, fallback)
}

// capture writes a screenshot and HTML dump named after the failure.
func (s *Scraper) capture(ctx context.Context, name string, screenshot bool) {
	if s.debugDir == "" {
		return
	}
	base := filepath.Join(s.debugDir, name)
	if screenshot {
		if err := s.eng.Screenshot(ctx, base+".png"); err != nil {
			s.logger.Warn("debug screenshot failed", "path", base+".png", "error", err)
		}
	}
	if err := s.eng.DumpHTML(ctx, base+".html"); err != nil {
		s.logger.Warn("debug html dump failed", "path", base+".html", "error", err)
		return
	}
	s.logger.Info("saved debug capture", "path", base)
}

func (s *Scraper) present(xpath string) poll.Predicate {
	return func(ctx context.Context) (bool, error) {
		el, err := s.eng.QueryOne(ctx, xpath)
		return el != nil, err
	}
}
