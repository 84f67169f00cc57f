package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wolfman30/spa-availability/cmd/mainconfig"
	"github.com/wolfman30/spa-availability/internal/api/router"
	"github.com/wolfman30/spa-availability/internal/api/scheduler"
	"github.com/wolfman30/spa-availability/internal/app/bootstrap"
)

var (
	serveOpts        scanFlags
	serveNoSchedule  bool
	serveScanOnStart bool
)

func init() {
	serveOpts.register(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "serve only; scans run through POST /admin/scan")
	serveCmd.Flags().BoolVar(&serveScanOnStart, "scan-on-start", false, "start a scan as soon as the server is up")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the latest availability and scans on SCAN_SCHEDULE.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger := loadConfig(cmd, &serveOpts)
		logger.Info("starting spa availability server", "env", cfg.Env, "port", cfg.Port)

		awsCfg, err := mainconfig.OptionalAWS(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		rt, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{AWS: awsCfg})
		if err != nil {
			return err
		}
		defer rt.Close()

		routerCfg := &router.Config{
			Logger:             logger,
			OutputDir:          cfg.OutputDir,
			Trigger:            rt.Job,
			AdminAuthSecret:    cfg.AdminJWTSecret,
			MetricsHandler:     promhttp.Handler(),
			CORSAllowedOrigins: cfg.CORSOrigins,
		}
		if rt.Latest != nil {
			routerCfg.Latest = rt.Latest
		}
		if rt.Ledger != nil {
			routerCfg.Runs = rt.Ledger
		}

		srv := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router.New(routerCfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		var sched *scheduler.Scheduler
		if !serveNoSchedule {
			sched, err = scheduler.New(ctx, cfg.ScanSchedule, rt.Job, logger)
			if err != nil {
				return err
			}
			sched.Start()
		}
		if serveScanOnStart && !rt.Job.TryStart(ctx) {
			logger.Warn("startup scan skipped, another scan is running")
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}

		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if sched != nil {
			select {
			case <-sched.Stop().Done():
			case <-shutdownCtx.Done():
				logger.Warn("scheduled scan still running at shutdown")
			}
		}
		logger.Info("server stopped")
		return nil
	},
}
