// Package scanner runs a full availability scan: it discovers providers per
// category, scans each provider's calendar and assembles the aggregate.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wolfman30/spa-availability/internal/acuity"
	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/observability/metrics"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

var tracer = otel.Tracer("spa.internal.scanner")

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusCancelled = "cancelled"
)

// ErrAborted marks a run stopped by an unusable engine. No artifact may be
// published for such a run.
var ErrAborted = errors.New("scanner: run aborted")

// ErrNoCategories rejects a request that selects nothing. Such a run opens
// no engine and publishes nothing.
var ErrNoCategories = errors.New("scanner: no categories selected")

// EngineFactory opens one browser session for a run.
type EngineFactory func(ctx context.Context) (engine.Engine, error)

// Request selects what a run scans.
type Request struct {
	Categories []availability.ServiceCategory
	// Horizon is the inclusive number of days from today to keep.
	Horizon int
	// Allow limits staff providers by loose name match; empty keeps all.
	Allow []string
	// RunID is generated when empty.
	RunID string
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Categories []string
	Outcomes   []availability.Outcome
	SlotCount  int
}

// Recorded counts providers present in the aggregate.
func (s Summary) Recorded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts providers left out of the aggregate.
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == availability.StatusFailed {
			n++
		}
	}
	return n
}

// Scanner drives one engine session per run.
type Scanner struct {
	open        EngineFactory
	logger      *logging.Logger
	now         func() time.Time
	metrics     *metrics.ScanMetrics
	limiter     *rate.Limiter
	scraperOpts []acuity.Option
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock sets the clock used for "today" and generated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m *metrics.ScanMetrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// WithRateLimit caps page navigations per second; zero disables the limit.
func WithRateLimit(perSec float64) Option {
	return func(s *Scanner) {
		s.limiter = newLimiter(perSec)
	}
}

// WithScraperOptions passes options to the page scraper of every run.
func WithScraperOptions(opts ...acuity.Option) Option {
	return func(s *Scanner) {
		s.scraperOpts = append(s.scraperOpts, opts...)
	}
}

func New(open EngineFactory, logger *logging.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scanner{
		open:    open,
		logger:  logger,
		now:     time.Now,
		limiter: newLimiter(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans every requested category. The aggregate is returned only for
// completed runs; an unusable engine yields ErrAborted and cancellation
// yields the context error.
func (s *Scanner) Run(ctx context.Context, req Request) (*availability.Aggregate, Summary, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	summary := Summary{
		RunID:      req.RunID,
		StartedAt:  s.now(),
		Categories: Labels(req.Categories),
	}
	log := s.logger.With("run_id", summary.RunID)

	ctx, span := tracer.Start(ctx, "scan.run", trace.WithAttributes(
		attribute.String("spa.run_id", summary.RunID),
		attribute.Int("spa.horizon_days", req.Horizon),
		attribute.StringSlice("spa.categories", summary.Categories),
	))
	defer span.End()

	finish := func(status string, err error) (*availability.Aggregate, Summary, error) {
		summary.Status = status
		summary.FinishedAt = s.now()
		s.metrics.ObserveRun(status, summary.FinishedAt.Sub(summary.StartedAt), summary.FinishedAt)
		span.SetAttributes(attribute.String("spa.status", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, summary, err
	}

	if len(req.Categories) == 0 {
		log.Error("refusing to scan without categories")
		return finish(StatusAborted, ErrNoCategories)
	}

	eng, err := s.open(ctx)
	if err != nil {
		log.Error("failed to start browser", "error", err)
		return finish(StatusAborted, fmt.Errorf("%w: open engine: %w", ErrAborted, err))
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Warn("browser close failed", "error", cerr)
		}
	}()

	norm := datetime.NewNormalizer(s.now, log)
	scraper := acuity.NewScraper(withRateLimit(eng, s.limiter), norm, log, s.scraperOpts...)
	today := norm.Today()
	agg := availability.NewAggregate()

	for _, category := range req.Categories {
		if err := ctx.Err(); err != nil {
			log.Warn("scan cancelled", "error", err)
			return finish(StatusCancelled, err)
		}
		if err := s.scanCategory(ctx, log, scraper, category, req, today, agg, &summary); err != nil {
			if engine.IsUnusable(err) {
				log.Error("browser became unusable, aborting run", "error", err)
				return finish(StatusAborted, fmt.Errorf("%w: %w", ErrAborted, err))
			}
			log.Warn("scan cancelled", "error", err)
			return finish(StatusCancelled, err)
		}
	}

	summary.SlotCount = agg.SlotCount()
	generatedAt := s.now()
	agg.Finalize(generatedAt)
	summary.Status = StatusCompleted
	summary.FinishedAt = generatedAt
	s.metrics.ObserveRun(StatusCompleted, generatedAt.Sub(summary.StartedAt), generatedAt)
	span.SetAttributes(
		attribute.String("spa.status", StatusCompleted),
		attribute.Int("spa.providers", agg.Len()),
		attribute.Int("spa.slots", summary.SlotCount),
	)
	log.Info("scan complete",
		"providers", agg.Len(),
		"failed", summary.Failed(),
		"slots", summary.SlotCount,
		"elapsed", generatedAt.Sub(summary.StartedAt).String(),
	)
	return agg, summary, nil
}

// scanCategory returns an error only for fatal conditions: an unusable
// engine or a cancelled context.
func (s *Scanner) scanCategory(ctx context.Context, log *logging.Logger, scraper *acuity.Scraper, category availability.ServiceCategory, req Request, today time.Time, agg *availability.Aggregate, summary *Summary) error {
	ctx, span := tracer.Start(ctx, "scan.category", trace.WithAttributes(
		attribute.String("spa.category", category.Label),
		attribute.String("spa.kind", string(category.Kind)),
	))
	defer span.End()

	log = log.With("category", category.Label)
	log.Info("scanning category")

	if category.Kind == availability.KindPass {
		provider := acuity.PassProvider(category)
		return s.scanProvider(ctx, log, category, provider, req, today, agg, summary, func(ctx context.Context) ([]availability.Slot, error) {
			return scraper.ScanPass(ctx, category)
		})
	}

	providers, err := scraper.DiscoverProviders(ctx, category, req.Allow)
	if err != nil {
		if fatal := fatalError(ctx, err); fatal != nil {
			span.RecordError(fatal)
			return fatal
		}
		span.RecordError(err)
		log.Error("provider discovery failed", "error", err)
		s.record(summary, availability.Outcome{
			Category: category.Label,
			Status:   availability.StatusFailed,
			Reason:   "discovery failed",
			Err:      err,
		})
		return nil
	}
	log.Info("providers discovered", "count", len(providers))
	span.SetAttributes(attribute.Int("spa.providers", len(providers)))

	for _, provider := range providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.scanProvider(ctx, log, category, provider, req, today, agg, summary, func(ctx context.Context) ([]availability.Slot, error) {
			return scraper.ScanCalendar(ctx, provider.BookingURL)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanProvider(ctx context.Context, log *logging.Logger, category availability.ServiceCategory, provider availability.Provider, req Request, today time.Time, agg *availability.Aggregate, summary *Summary, scan func(context.Context) ([]availability.Slot, error)) error {
	ctx, span := tracer.Start(ctx, "scan.provider", trace.WithAttributes(
		attribute.String("spa.category", category.Label),
		attribute.String("spa.provider", provider.DisplayName),
	))
	defer span.End()

	log = log.With("provider", provider.DisplayName)
	outcome := availability.Outcome{Category: category.Label, Provider: provider.DisplayName}

	slots, err := safeScan(ctx, scan)
	if err != nil {
		span.RecordError(err)
		if fatal := fatalError(ctx, err); fatal != nil {
			return fatal
		}
		log.Error("provider scan failed", "error", err)
		outcome.Status = availability.StatusFailed
		outcome.Reason = "scan failed"
		outcome.Err = err
		s.record(summary, outcome)
		return nil
	}

	kept := withinHorizon(slots, today, req.Horizon)
	agg.Record(provider.DisplayName, availability.ResultFor(provider, kept))

	outcome.Slots = len(kept)
	outcome.Status = availability.StatusRecorded
	if len(kept) == 0 {
		outcome.Status = availability.StatusEmpty
		log.Info("no availability found")
	} else {
		log.Info("slots recorded", "slots", len(kept), "dropped_beyond_horizon", len(slots)-len(kept))
	}
	span.SetAttributes(attribute.Int("spa.slots", len(kept)))
	s.record(summary, outcome)
	return nil
}

func (s *Scanner) record(summary *Summary, outcome availability.Outcome) {
	summary.Outcomes = append(summary.Outcomes, outcome)
	s.metrics.ObserveProvider(outcome.Category, string(outcome.Status), outcome.Slots)
}

// safeScan turns a panic inside one provider into an ordinary failure.
func safeScan(ctx context.Context, scan func(context.Context) ([]availability.Slot, error)) (slots []availability.Slot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner: provider scan panicked: %v", r)
		}
	}()
	return scan(ctx)
}

// fatalError reports the error that must end the run, if any.
func fatalError(ctx context.Context, err error) error {
	if engine.IsUnusable(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

func withinHorizon(slots []availability.Slot, today time.Time, horizon int) []availability.Slot {
	kept := make([]availability.Slot, 0, len(slots))
	for _, slot := range slots {
		if datetime.IsWithinHorizon(slot.Date, today, horizon) {
			kept = append(kept, slot)
		}
	}
	return kept
}
