package cli

import (
	"github.com/spf13/cobra"

	"cryptolens/internal/server"
)

func addServeCommand(rootCmd *cobra.Command, app *App) {
	var (
		addr       string
		noSchedule bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache and analysis as a JSON API",
		Long: `Start the HTTP API used by the dashboard:

  GET /api/cryptos                      listing by market cap
  GET /api/cryptos/search?q=            name or symbol search
  GET /api/cryptos/top/{limit}          top coins
  GET /api/cryptos/{id}                 coin details
  GET /api/cryptos/{id}/history?period= price history window
  GET /api/cryptos/{id}/analysis        technical analysis
  GET /api/stats                        market statistics
  GET /healthz, /metrics

The cache is refreshed on [sync] schedule unless --no-schedule is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.Config.ServerConfig()
			if addr != "" {
				cfg.Addr = addr
			}

			metrics := server.NewMetrics()
			srv := server.NewServer(cfg, app.Store, app.Analyzer, metrics, app.Logger)

			if !noSchedule && !app.Offline && app.Config.Sync.Schedule != "" {
				sched := server.NewScheduler(ctx, app.Syncer, metrics, app.Logger)
				if err := sched.Register(app.Config.Sync.Schedule); err != nil {
					return err
				}
				srv.SetScheduler(sched)
			}

			NewOutput(cmd).Info("Serving on http://%s (Ctrl+C to stop)", cfg.Addr)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from [server] addr)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "disable the periodic sync")
	rootCmd.AddCommand(cmd)
}
