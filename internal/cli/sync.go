package cli

import (
	"github.com/spf13/cobra"

	"cryptolens/internal/resilience"
	"cryptolens/internal/store"
	"cryptolens/pkg/utils"
)

func addSyncCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSyncCmd(app))
}

// syncRow is the JSON form of one coin's sync outcome.
type syncRow struct {
	CryptoID string `json:"crypto_id"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [ids...]",
		Short: "Refresh the listing and price history cache",
		Long: `Download the current listing and merge price history into the local
cache. With no ids the top coins of the listing are synced ([sync] top_n).`,
		Example: `  cryptolens sync
  cryptolens sync bitcoin ethereum
  cryptolens sync status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Offline {
				output.Warning("Offline mode: nothing to sync")
				return nil
			}

			report, err := app.Syncer.Run(cmd.Context(), args)
			if report == nil {
				return err
			}

			rows := make([]syncRow, len(report.History))
			for i, h := range report.History {
				rows[i] = syncRow{CryptoID: h.CryptoID, Fetched: h.Fetched, Inserted: h.Inserted}
				if h.Err != nil {
					rows[i].Error = h.Err.Error()
				}
			}
			if output.IsJSON() {
				if jerr := output.JSON(map[string]interface{}{
					"listed":     report.Listed,
					"history":    rows,
					"failed":     report.Failed(),
					"elapsed_ms": report.Elapsed.Milliseconds(),
				}); jerr != nil {
					return jerr
				}
				return err
			}

			output.Success("✓ Listing: %s coins", utils.FormatCount(report.Listed))
			table := NewTable(output, "COIN", "FETCHED", "NEW", "STATUS")
			for _, r := range rows {
				status := output.Green("ok")
				if r.Error != "" {
					status = output.Red(TruncateString(r.Error, 48))
				}
				table.AddRow(r.CryptoID, utils.FormatCount(r.Fetched), utils.FormatCount(r.Inserted), status)
			}
			table.Render()
			output.Dim("Synced %d coins in %s (%d failed)", len(rows), FormatDuration(report.Elapsed), report.Failed())
			if breaker := app.Client.BreakerStats(); breaker.State != resilience.CircuitClosed {
				output.Warning("API circuit %s after %d failed requests; remaining calls were skipped", breaker.State, breaker.TotalFailures)
			}
			return err
		},
	}
	cmd.AddCommand(newSyncStatusCmd(app))
	return cmd
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when each dataset was last synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ids, err := app.Store.ListHistoryIDs(cmd.Context())
			if err != nil {
				return err
			}
			statuses := []*store.SyncStatus{app.Syncer.GetSyncStatus(store.SyncTypeListing)}
			for _, id := range ids {
				st := app.Syncer.GetSyncStatus(store.HistorySyncType(id))
				if st.LatestRow, err = app.Store.GetHistoryFreshness(cmd.Context(), id); err != nil {
					return err
				}
				statuses = append(statuses, st)
			}
			for _, st := range statuses {
				app.Logger.Debug().Msg(store.FormatSyncStatus(st))
			}

			if output.IsJSON() {
				return output.JSON(statuses)
			}

			table := NewTable(output, "DATASET", "LAST SYNC", "LATEST ROW", "STATE")
			for _, st := range statuses {
				state := output.Green("fresh")
				if st.IsStale {
					state = output.Yellow("stale")
				}
				latest := output.DimText("-")
				if !st.LatestRow.IsZero() {
					latest = st.LatestRow.Format("2006-01-02")
				}
				table.AddRow(string(st.DataType), utils.FormatAgo(st.LastSync), latest, state)
			}
			table.Render()
			if app.Config.Sync.Schedule != "" {
				output.Dim("Server sync schedule: %s", app.Config.Sync.Schedule)
			}
			return nil
		},
	}
}
