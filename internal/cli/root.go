// Package cli provides the command-line interface for cryptolens.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cryptolens/internal/analysis"
	"cryptolens/internal/config"
	"cryptolens/internal/logging"
	"cryptolens/internal/market"
	"cryptolens/internal/models"
	"cryptolens/internal/store"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Client   *market.Client
	Syncer   *store.Syncer
	Analyzer *analysis.Analyzer

	// Offline serves every command from the local cache.
	Offline bool
}

// NewRootCmd creates the root command for the CLI. Dependencies are built
// once flags are parsed.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{Logger: zerolog.Nop()})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cryptolens",
		Short: "Crypto market browser and technical analysis",
		Long: `cryptolens browses cryptocurrency listings and price history from the
dashboard API, caches them locally and runs technical analysis (SMA, EMA,
RSI, MACD, Bollinger Bands) with trend, volatility and recommendation
summaries.

Use 'cryptolens serve' to expose the cache and analysis as a JSON API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cryptolens)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&app.Offline, "offline", false, "use cached data only")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addMarketCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addSyncCommands(rootCmd, app)
	addServeCommand(rootCmd, app)
	closeOnError(rootCmd, app)

	return rootCmd
}

// closeOnError releases the store when a command fails. Cobra skips
// PersistentPostRunE after a RunE error.
func closeOnError(cmd *cobra.Command, app *App) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				if cerr := app.Close(); cerr != nil {
					app.Logger.Warn().Err(cerr).Msg("Failed to close store")
				}
			}
			return err
		}
	}
	for _, sub := range cmd.Commands() {
		closeOnError(sub, app)
	}
}

// init loads the config and wires the store, client, syncer and analyzer.
func (a *App) init(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	debug, _ := cmd.Flags().GetBool("debug")
	logCfg := cfg.LoggingConfig(debug)
	logCfg.Out = cmd.ErrOrStderr()
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	if debug {
		logging.SetDebugLevel()
	}

	if !needsStore(cmd) {
		return nil
	}

	ds, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	a.Store = ds
	a.Logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")

	a.Client = market.NewClient(cfg.MarketConfig(), a.Logger)
	a.Syncer = store.NewSyncer(ds, a.Client, cfg.SyncerConfig(), a.Logger)
	a.Analyzer = analysis.NewAnalyzer(cfg.AnalysisParams(), a.Logger)
	return nil
}

// needsStore reports whether cmd works on cached data.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "config":
			return false
		}
	}
	return true
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// loadListing returns the cached listing, refreshing it first when it is
// stale. A failed refresh falls back to the cache.
func (a *App) loadListing(ctx context.Context) ([]models.Crypto, error) {
	if !a.Offline && a.Syncer.IsDataStale(store.SyncTypeListing) {
		if _, err := a.Syncer.SyncListing(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Listing refresh failed, using cache")
		}
	}
	return a.Store.ListCryptos(ctx)
}

// loadHistory returns the cached history of id, refreshing it first when it
// is stale. A failed refresh falls back to the cache.
func (a *App) loadHistory(ctx context.Context, id string) (models.Series, error) {
	if !a.Offline && a.Syncer.IsDataStale(store.HistorySyncType(id)) {
		if _, err := a.Syncer.SyncHistory(ctx, []string{id}); err != nil {
			logging.WithCrypto(a.Logger, id).Warn().Err(err).Msg("History refresh failed, using cache")
		}
	}
	return a.Store.GetHistory(ctx, id)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("cryptolens v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.Path
			if path == "" {
				dir, _ := cmd.Flags().GetString("config")
				if dir == "" {
					dir = config.DefaultConfigDir()
				}
				path = dir + "/" + config.FileName
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			NewOutput(cmd).Printf("%s", config.Template())
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("API")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Rate limit:      %.1f req/s (burst %d)\n", cfg.API.RequestsPerSecond, cfg.API.Burst)
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Default period:  %s\n", cfg.Analysis.DefaultPeriod)
	output.Printf("  SMA / EMA:       %d / %d\n", cfg.Analysis.SMAPeriod, cfg.Analysis.EMAPeriod)
	output.Printf("  RSI:             %d\n", cfg.Analysis.RSIPeriod)
	output.Printf("  MACD:            %d/%d\n", cfg.Analysis.MACDFast, cfg.Analysis.MACDSlow)
	output.Printf("  Bollinger:       %d x %.1f\n", cfg.Analysis.BollingerPeriod, cfg.Analysis.BollingerStdDev)
	output.Println()

	output.Bold("Store & Sync")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Schedule:        %s\n", fallback(cfg.Sync.Schedule, "disabled"))
	output.Printf("  Stale after:     %s\n", cfg.Sync.StaleAfter)
	output.Printf("  Top N:           %d\n", cfg.Sync.TopN)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Allow origin:    %s\n", fallback(cfg.Server.AllowOrigin, "(none)"))
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// exactArgs is cobra.ExactArgs with a usage hint.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}
}
