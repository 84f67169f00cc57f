package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/spa-availability/cmd/mainconfig"
	"github.com/wolfman30/spa-availability/internal/app/bootstrap"
	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/internal/scanner"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

type runner interface {
	Run(ctx context.Context) (scanner.Result, error)
}

// response is returned to the invoker (EventBridge ignores it; manual
// invocations show it).
type response struct {
	RunID    string `json:"run_id,omitempty"`
	Status   string `json:"status"`
	Slots    int    `json:"slots"`
	Failed   int    `json:"failed"`
	NewSlots int    `json:"new_slots"`
	Changed  bool   `json:"changed"`
	MD5      string `json:"md5,omitempty"`
}

// loadConfig forces the sidecar engine and writable /tmp paths; the Lambda
// filesystem is read-only elsewhere.
func loadConfig() *appconfig.Config {
	cfg := appconfig.Load()
	cfg.BrowserMode = "sidecar"
	if os.Getenv("OUTPUT_DIR") == "" {
		cfg.OutputDir = "/tmp/www"
	}
	if os.Getenv("DEBUG_DIR") == "" {
		cfg.DebugDir = "/tmp"
	}
	return cfg
}

func main() {
	ctx := context.Background()
	cfg := loadConfig()
	logger := logging.New(cfg.LogLevel)

	awsCfg, err := mainconfig.OptionalAWS(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	rt, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{AWS: awsCfg})
	if err != nil {
		logger.Error("failed to build scanner", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (response, error) {
		return handle(ctx, rt.Job, logger, evt)
	})
}

func handle(ctx context.Context, job runner, logger *logging.Logger, evt events.CloudWatchEvent) (response, error) {
	logger.Info("scan invoked", "source", evt.Source, "detail_type", evt.DetailType, "event_id", evt.ID)

	res, err := job.Run(ctx)
	if errors.Is(err, scanner.ErrBusy) {
		return response{Status: "skipped"}, nil
	}
	out := response{
		RunID:    res.Summary.RunID,
		Status:   res.Summary.Status,
		Slots:    res.Summary.SlotCount,
		Failed:   res.Summary.Failed(),
		NewSlots: len(res.NewSlots),
		Changed:  res.Changed,
		MD5:      res.Artifact.MD5,
	}
	if err != nil {
		logger.Error("scan failed", "run_id", out.RunID, "error", err)
		return out, err
	}
	return out, nil
}
