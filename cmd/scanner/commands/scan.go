package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolfman30/spa-availability/cmd/mainconfig"
	"github.com/wolfman30/spa-availability/internal/app/bootstrap"
)

var (
	scanOpts     scanFlags
	scanToStdout bool
	scanQuiet    bool
)

func init() {
	scanOpts.register(scanCmd)
	scanCmd.Flags().BoolVar(&scanToStdout, "stdout", true, "also print the JSON document to stdout")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "skip the summary table")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Runs one scan and publishes appointments.json.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger := loadConfig(cmd, &scanOpts)

		awsCfg, err := mainconfig.OptionalAWS(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		opts := bootstrap.Options{AWS: awsCfg}
		if scanToStdout {
			opts.Stdout = cmd.OutOrStdout()
		}
		rt, err := bootstrap.Build(ctx, cfg, logger, opts)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.Job.Run(ctx)
		if !scanQuiet && len(res.Summary.Outcomes) > 0 {
			renderSummary(os.Stderr, res)
		}
		return err
	},
}
