package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/spa-availability/internal/history"
	httpmiddleware "github.com/wolfman30/spa-availability/internal/http/middleware"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// LatestSource serves the most recent published artifact.
type LatestSource interface {
	LatestArtifact(ctx context.Context) (output.Artifact, bool, error)
}

// ScanTrigger starts a scan in the background unless one is running.
type ScanTrigger interface {
	TryStart(ctx context.Context) bool
}

// RunLister lists recent runs from the ledger.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	// Latest is consulted first; OutputDir is read when it is nil or empty.
	Latest    LatestSource
	OutputDir string

	Trigger         ScanTrigger
	Runs            RunLister
	AdminAuthSecret string
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h := &handlers{
		logger:    logger,
		latest:    cfg.Latest,
		outputDir: cfg.OutputDir,
		trigger:   cfg.Trigger,
		runs:      cfg.Runs,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", h.health)
		public.Get("/appointments.json", h.appointmentsJSON)
		public.Get("/appointments.md5", h.appointmentsMD5)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.RateLimit(1, 3))
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, logger))
		if cfg.Trigger != nil {
			admin.Post("/scan", h.triggerScan)
		}
		if cfg.Runs != nil {
			admin.Get("/runs", h.listRuns)
		}
	})

	return r
}
