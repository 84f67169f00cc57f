package bootstrap

import (
	"context"

	"github.com/wolfman30/spa-availability/internal/browser"
	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/scanner"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// BuildEngineFactory returns the per-run browser opener for the configured
// mode: a sidecar session when BROWSER_MODE=sidecar, local Chrome otherwise.
func BuildEngineFactory(cfg *appconfig.Config, logger *logging.Logger) scanner.EngineFactory {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseSidecar() {
		client := browser.NewClient(cfg.BrowserSidecarURL, browser.WithLogger(logger))
		req := browser.SessionRequest{
			Headless: cfg.Headless,
			Timeout:  int(cfg.BrowserTimeout.Milliseconds()),
		}
		return func(ctx context.Context) (engine.Engine, error) {
			session, err := client.OpenSession(ctx, req)
			if err != nil {
				return nil, err
			}
			return session, nil
		}
	}

	chromeCfg := browser.ChromeConfig{
		Headless: cfg.Headless,
		ExecPath: cfg.ChromePath,
		Timeout:  cfg.BrowserTimeout,
	}
	return func(context.Context) (engine.Engine, error) {
		chrome, err := browser.NewChrome(chromeCfg, logger)
		if err != nil {
			return nil, err
		}
		return chrome, nil
	}
}
