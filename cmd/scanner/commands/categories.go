package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wolfman30/spa-availability/internal/catalog"
	"github.com/wolfman30/spa-availability/internal/scanner"
)

var categoriesOpts scanFlags

func init() {
	categoriesOpts.register(categoriesCmd)
	rootCmd.AddCommand(categoriesCmd)
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Lists the catalog; with --type/--massage, only what a scan would visit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig(cmd, &categoriesOpts)
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return err
		}
		cat = cat.WithPassURL(cfg.PassURL)

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Key", "Label", "Kind", "Type ID", "URL"})
		for _, c := range scanner.SelectCategories(cat, cfg.ScanType, cfg.MassageType) {
			t.AppendRow(table.Row{c.Key, c.Label, c.Kind, c.TypeID, c.URL})
		}
		t.Render()
		return nil
	},
}
