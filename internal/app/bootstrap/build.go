package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/spa-availability/internal/acuity"
	"github.com/wolfman30/spa-availability/internal/catalog"
	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/internal/history"
	"github.com/wolfman30/spa-availability/internal/observability/metrics"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/internal/scanner"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// Options tunes Build for the calling binary.
type Options struct {
	// AWS enables S3, SQS and SES wiring; nil keeps the run local.
	AWS *aws.Config
	// Registerer receives the scan metrics; nil means the default registry.
	Registerer prometheus.Registerer
	// Stdout, when set, also receives the JSON document.
	Stdout io.Writer
	// Engine overrides the browser factory derived from config.
	Engine scanner.EngineFactory
	// ScraperOptions are applied after the config-derived ones.
	ScraperOptions []acuity.Option
}

// Runtime is a fully wired scan pipeline.
type Runtime struct {
	Config  *appconfig.Config
	Logger  *logging.Logger
	Catalog catalog.Catalog
	Scanner *scanner.Scanner
	Job     *scanner.Job
	Latest  *output.RedisSink
	Ledger  *history.RunLedger

	closers []func()
}

// Build wires every collaborator the config enables. Optional stores that
// fail to connect are logged and skipped; only a bad catalog or database is
// fatal.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	cat = cat.WithPassURL(cfg.PassURL)
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, Catalog: cat}

	open := opts.Engine
	if open == nil {
		open = BuildEngineFactory(cfg, logger)
	}
	rt.Scanner = scanner.New(open, logger,
		scanner.WithMetrics(metrics.NewScanMetrics(opts.Registerer)),
		scanner.WithRateLimit(cfg.ScanRatePerSec),
		scanner.WithScraperOptions(acuity.WithDebugDir(cfg.DebugDir)),
		scanner.WithScraperOptions(opts.ScraperOptions...),
	)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}
	publisher, redisSink := BuildPublisher(cfg, opts.AWS, redisClient, opts, logger)
	rt.Latest = redisSink

	jobOpts := []scanner.JobOption{
		scanner.WithEvents(BuildEvents(cfg, opts.AWS, logger)),
	}
	if redisSink != nil {
		jobOpts = append(jobOpts, scanner.WithPrevious(redisSink))
	}
	if svc := BuildNotifier(cfg, opts.AWS, logger); svc.Enabled() {
		jobOpts = append(jobOpts, scanner.WithNotifier(svc))
	}

	pool, sqlDB, err := BuildDatabase(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if pool != nil {
		rt.closers = append(rt.closers, pool.Close, func() { _ = sqlDB.Close() })
		rt.Ledger = history.NewRunLedger(sqlDB)
		jobOpts = append(jobOpts,
			scanner.WithLedger(rt.Ledger),
			scanner.WithArchive(history.NewSlotArchive(pool, logger)),
		)
		logger.Info("run history enabled")
	}

	rt.Job = scanner.NewJob(rt.Scanner, rt.Request, publisher, logger, jobOpts...)
	return rt, nil
}

// Request builds the scan request from the current config and catalog.
func (r *Runtime) Request() scanner.Request {
	categories := scanner.SelectCategories(r.Catalog, r.Config.ScanType, r.Config.MassageType)
	if len(categories) == 0 {
		r.Logger.Warn("no categories match scan selection",
			"scan_type", r.Config.ScanType,
			"massage_type", r.Config.MassageType,
		)
	}
	return scanner.Request{
		Categories: categories,
		Horizon:    r.Config.DaysToScan,
		Allow:      r.Config.TargetStaff,
	}
}

// Close releases connections in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
