package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/events"
	"github.com/wolfman30/spa-availability/internal/history"
	"github.com/wolfman30/spa-availability/internal/notify"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("scanner: scan already running")

// ArtifactPublisher writes a finished aggregate to its sinks.
type ArtifactPublisher interface {
	Publish(ctx context.Context, agg *availability.Aggregate) (output.Artifact, bool, error)
}

// SnapshotSource returns the last published aggregate, or nil.
type SnapshotSource interface {
	Latest(ctx context.Context) (*availability.Aggregate, error)
}

// RunRecorder keeps run bookkeeping.
type RunRecorder interface {
	Start(ctx context.Context, run history.Run) error
	Finish(ctx context.Context, run history.Run) error
}

// SnapshotArchiver stores the slots of a run.
type SnapshotArchiver interface {
	SaveSnapshot(ctx context.Context, runID string, agg *availability.Aggregate) error
}

// SlotNotifier announces new slots.
type SlotNotifier interface {
	NotifyNewSlots(ctx context.Context, slots []notify.NewSlot) error
}

// Result is what one Job run produced.
type Result struct {
	Summary  Summary
	Artifact output.Artifact
	Changed  bool
	NewSlots []notify.NewSlot
}

// Job runs the scanner and the post-run steps, one run at a time. Only the
// publisher is required; every other collaborator is optional.
type Job struct {
	mu        sync.Mutex
	scanner   *Scanner
	request   func() Request
	publisher ArtifactPublisher
	previous  SnapshotSource
	ledger    RunRecorder
	archive   SnapshotArchiver
	notifier  SlotNotifier
	events    events.Publisher
	logger    *logging.Logger
}

// JobOption configures a Job.
type JobOption func(*Job)

func WithPrevious(src SnapshotSource) JobOption {
	return func(j *Job) { j.previous = src }
}

func WithLedger(l RunRecorder) JobOption {
	return func(j *Job) { j.ledger = l }
}

func WithArchive(a SnapshotArchiver) JobOption {
	return func(j *Job) { j.archive = a }
}

func WithNotifier(n SlotNotifier) JobOption {
	return func(j *Job) { j.notifier = n }
}

func WithEvents(p events.Publisher) JobOption {
	return func(j *Job) { j.events = p }
}

// NewJob builds a Job. request is evaluated at the start of every run so a
// long-lived server picks up the current horizon.
func NewJob(s *Scanner, request func() Request, publisher ArtifactPublisher, logger *logging.Logger, opts ...JobOption) *Job {
	if logger == nil {
		logger = logging.Default()
	}
	j := &Job{
		scanner:   s,
		request:   request,
		publisher: publisher,
		events:    events.NopPublisher{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs one scan and publishes it. It returns ErrBusy without
// waiting when another run holds the lock.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if !j.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer j.mu.Unlock()
	return j.run(ctx)
}

// TryStart launches a run in the background and reports whether it did.
// The run is detached from ctx cancellation so an HTTP request ending does
// not abort it.
func (j *Job) TryStart(ctx context.Context) bool {
	if !j.mu.TryLock() {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer j.mu.Unlock()
		if _, err := j.run(ctx); err != nil {
			j.logger.Error("background scan failed", "error", err)
		}
	}()
	return true
}

func (j *Job) run(ctx context.Context) (Result, error) {
	req := j.request()
	req.RunID = uuid.NewString()
	j.startRecord(ctx, req)

	var prev *availability.Aggregate
	if j.previous != nil {
		p, err := j.previous.Latest(ctx)
		if err != nil {
			j.logger.Warn("could not load previous availability", "error", err)
		}
		prev = p
	}

	agg, summary, err := j.scanner.Run(ctx, req)
	res := Result{Summary: summary}
	if err != nil {
		j.finishRecord(ctx, summary, "", err)
		return res, err
	}

	art, changed, err := j.publisher.Publish(ctx, agg)
	res.Artifact, res.Changed = art, changed
	if err != nil {
		j.finishRecord(ctx, summary, art.MD5, err)
		return res, err
	}

	if j.archive != nil {
		if err := j.archive.SaveSnapshot(ctx, summary.RunID, agg); err != nil {
			j.logger.Warn("slot snapshot not archived", "run_id", summary.RunID, "error", err)
		}
	}

	if changed {
		res.NewSlots = notify.Diff(prev, agg)
		if len(res.NewSlots) > 0 && j.notifier != nil {
			if err := j.notifier.NotifyNewSlots(ctx, res.NewSlots); err != nil {
				j.logger.Warn("new slot notification failed", "error", err)
			}
		}
	}

	evt := events.ScanCompletedV1{
		Run:           summary.RunID,
		GeneratedAt:   art.GeneratedAt,
		MD5:           art.MD5,
		ProviderCount: summary.Recorded(),
		FailedCount:   summary.Failed(),
		SlotCount:     summary.SlotCount,
		NewSlotCount:  len(res.NewSlots),
		Changed:       changed,
	}
	if err := j.events.Publish(ctx, evt); err != nil {
		j.logger.Warn("scan completed event not published", "error", err)
	}

	j.finishRecord(ctx, summary, art.MD5, nil)
	return res, nil
}

// startRecord inserts the ledger row. Ledger failures never fail the run.
func (j *Job) startRecord(ctx context.Context, req Request) {
	if j.ledger == nil {
		return
	}
	err := j.ledger.Start(ctx, history.Run{
		ID:         req.RunID,
		StartedAt:  j.scanner.now(),
		Status:     "running",
		Categories: Labels(req.Categories),
	})
	if err != nil {
		j.logger.Warn("run ledger start failed", "run_id", req.RunID, "error", err)
	}
}

func (j *Job) finishRecord(ctx context.Context, summary Summary, md5 string, runErr error) {
	if j.ledger == nil || summary.RunID == "" {
		return
	}
	run := history.Run{
		ID:         summary.RunID,
		FinishedAt: summary.FinishedAt,
		Status:     summary.Status,
		Providers:  summary.Recorded(),
		Failed:     summary.Failed(),
		SlotCount:  summary.SlotCount,
		MD5:        md5,
	}
	if runErr != nil {
		run.Error = runErr.Error()
		if run.Status == StatusCompleted {
			run.Status = "publish_failed"
		}
	}
	if err := j.ledger.Finish(context.WithoutCancel(ctx), run); err != nil {
		j.logger.Warn("run ledger finish failed", "run_id", summary.RunID, "error", err)
	}
}
