package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:           "scanner",
	Short:         "scanner collects open spa appointments from the booking site.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scanFlags override the matching environment variables when set.
type scanFlags struct {
	scanType    string
	massageType string
	days        int
	staff       []string
	catalog     string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scanType, "type", "", "scan type: spapass, massage or empty for all (SCAN_TYPE)")
	cmd.Flags().StringVar(&f.massageType, "massage", "", "narrow a massage scan to one category key (MASSAGE_TYPE)")
	cmd.Flags().IntVar(&f.days, "days", 0, "days ahead to keep, inclusive (DAYS_TO_SCAN)")
	cmd.Flags().StringSliceVar(&f.staff, "staff", nil, "only scan providers whose names contain one of these (TARGET_STAFF)")
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "path to the json5 category catalog (CATALOG_PATH)")
}

func (f *scanFlags) apply(cmd *cobra.Command, cfg *appconfig.Config) {
	flags := cmd.Flags()
	if flags.Changed("type") {
		cfg.ScanType = f.scanType
	}
	if flags.Changed("massage") {
		cfg.MassageType = f.massageType
	}
	if flags.Changed("days") {
		cfg.DaysToScan = f.days
	}
	if flags.Changed("staff") {
		cfg.TargetStaff = f.staff
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = f.catalog
	}
}

func loadConfig(cmd *cobra.Command, flags *scanFlags) (*appconfig.Config, *logging.Logger) {
	cfg := appconfig.Load()
	if flags != nil {
		flags.apply(cmd, cfg)
	}
	return cfg, logging.New(cfg.LogLevel)
}
