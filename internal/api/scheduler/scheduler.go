// Package scheduler runs scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/spa-availability/internal/scanner"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// Runner is the job the schedule fires.
type Runner interface {
	Run(ctx context.Context) (scanner.Result, error)
}

// Scheduler fires Runner on a standard five-field cron spec.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
}

// New parses spec and registers job. The returned scheduler is not started.
func New(ctx context.Context, spec string, job Runner, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	c := cron.New(cron.WithLogger(cronLogger{logger}))
	_, err := c.AddFunc(spec, func() {
		res, err := job.Run(ctx)
		switch {
		case errors.Is(err, scanner.ErrBusy):
			logger.Info("scheduled scan skipped, previous run still going")
		case err != nil:
			logger.Error("scheduled scan failed", "error", err)
		default:
			logger.Info("scheduled scan finished",
				"run_id", res.Summary.RunID,
				"slots", res.Summary.SlotCount,
				"changed", res.Changed,
				"new_slots", len(res.NewSlots),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scan scheduled", "next", e.Next)
	}
}

// Stop halts the schedule and returns a context that is done once the
// in-flight run, if any, returns.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
