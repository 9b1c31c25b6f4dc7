package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cryptolens/internal/analysis/series"
	"cryptolens/internal/models"
	"cryptolens/internal/store"
	"cryptolens/pkg/utils"
)

func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newHistoryCmd(app *App) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show cached price history",
		Long: `Show the price history of a coin over a trailing period
(24h, 7d, 30d, 90d, 1y). Stale history is refreshed from the API first.`,
		Example: `  cryptolens history bitcoin --period 7d
  cryptolens history import bitcoin ./bitcoin.csv
  cryptolens history export bitcoin ./bitcoin.parquet --format parquet
  cryptolens history gaps bitcoin`,
		Args: exactArgs(1, "cryptolens history <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id := args[0]

			points, err := app.loadHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			token := periodOrDefault(period, app)
			window := series.WindowByPeriod(points, token)

			if output.IsJSON() {
				return output.JSON(window)
			}

			output.Bold("%s price history (%s, %d points)", id, token, len(window))
			prices := series.ExtractPrices(window)
			output.Printf("  %s\n\n", Sparkline(prices, 60))

			table := NewTable(output, "DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
			for _, p := range window {
				table.AddRow(
					p.Date.String(),
					cell(p.Open),
					cell(p.High),
					cell(p.Low),
					utils.FormatPrice(series.PriceOf(p)),
					utils.FormatVolume(series.VolumeOf(p)),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "", "trailing period: 24h, 7d, 30d, 90d, 1y")

	cmd.AddCommand(newHistoryImportCmd(app))
	cmd.AddCommand(newHistoryExportCmd(app))
	cmd.AddCommand(newHistoryGapsCmd(app))
	return cmd
}

// cell formats an optional OHLC cell.
func cell(f models.Field) string {
	v, ok := f.Float()
	if !ok {
		return Undefined
	}
	return utils.FormatPrice(v)
}

// periodOrDefault resolves the period flag against the configured default.
func periodOrDefault(period string, app *App) series.Token {
	if period == "" {
		return series.Token(app.Config.Analysis.DefaultPeriod)
	}
	return series.Token(strings.ToLower(period))
}

func newHistoryImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <id> <file.csv>",
		Short: "Merge a CSV history file into the cache",
		Long: `Merge a CSV file with date, open, high, low, close, volume and price
columns into the cached history. Rows whose date is already cached are
skipped.`,
		Args: exactArgs(2, "cryptolens history import <id> <file.csv>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			inserted, err := store.ImportHistoryFile(cmd.Context(), app.Store, args[0], args[1])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"crypto_id": args[0], "inserted": inserted})
			}
			output.Success("✓ Imported %s new rows for %s", utils.FormatCount(inserted), args[0])
			return nil
		},
	}
}

func newHistoryExportCmd(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Export cached history to CSV, JSON or Parquet",
		Args:  exactArgs(2, "cryptolens history export <id> <file>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(args[1]), ".")
			}
			n, err := store.ExportHistoryFile(cmd.Context(), app.Store, args[0], args[1], format)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"crypto_id": args[0], "rows": n, "path": args[1], "format": format})
			}
			output.Success("✓ Wrote %s rows to %s", utils.FormatCount(n), args[1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv, json or parquet (default: from file extension)")
	return cmd
}

func newHistoryGapsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "gaps <id>",
		Short: "List calendar days missing from the cached history",
		Args:  exactArgs(1, "cryptolens history gaps <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			points, err := app.Store.GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			missing := series.MissingDates(points)

			dates := make([]string, len(missing))
			for i, d := range missing {
				dates[i] = d.Format("2006-01-02")
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"crypto_id": args[0], "missing": dates})
			}
			if len(dates) == 0 {
				output.Success("✓ No gaps in %d days of %s history", len(points), args[0])
				return nil
			}
			output.Warning("%d missing days in %s history:", len(dates), args[0])
			for _, d := range dates {
				output.Println("  " + d)
			}
			return nil
		},
	}
}

// describePeriods lists the accepted period tokens for help text.
func describePeriods() string {
	tokens := series.Tokens()
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = fmt.Sprintf("%s (%d days)", t, t.Days())
	}
	return strings.Join(parts, ", ")
}
