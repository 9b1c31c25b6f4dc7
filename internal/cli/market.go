package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cryptolens/internal/analysis/series"
	"cryptolens/internal/market"
	"cryptolens/internal/models"
	"cryptolens/pkg/utils"
)

func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newShowCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
}

func newListCmd(app *App) *cobra.Command {
	var (
		top    int
		page   int
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cryptocurrencies by market cap",
		Example: `  cryptolens list
  cryptolens list --top 10
  cryptolens list --page 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			var (
				cryptos []models.Crypto
				err     error
			)
			switch {
			case remote && top > 0:
				cryptos, err = app.Client.TopCryptos(ctx, top)
			case remote:
				cryptos, err = app.Client.ListCryptos(ctx)
			default:
				cryptos, err = app.loadListing(ctx)
			}
			if err != nil {
				return err
			}
			if top > 0 {
				cryptos = market.Top(cryptos, top)
			}

			pageSize := app.Config.UI.PageSize
			total := len(cryptos)
			offset := 0
			if top == 0 && page > 0 && pageSize > 0 {
				offset = (page - 1) * pageSize
				cryptos = paginate(cryptos, page, pageSize)
			}

			if output.IsJSON() {
				return output.JSON(cryptos)
			}
			if len(cryptos) == 0 {
				output.Warning("No cryptocurrencies cached. Run 'cryptolens sync' first.")
				return nil
			}
			renderListing(output, cryptos, offset)
			if top == 0 && page > 0 && pageSize > 0 {
				output.Dim("Page %d of %d (%s coins)", page, (total+pageSize-1)/pageSize, utils.FormatCount(total))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "show only the top N coins")
	cmd.Flags().IntVar(&page, "page", 0, "page number (page size from [ui] page_size)")
	cmd.Flags().BoolVar(&remote, "remote", false, "query the API directly, bypassing the cache")
	return cmd
}

// paginate returns the 1-based page of size pageSize.
func paginate(cryptos []models.Crypto, page, pageSize int) []models.Crypto {
	start := (page - 1) * pageSize
	if start >= len(cryptos) {
		return []models.Crypto{}
	}
	end := start + pageSize
	if end > len(cryptos) {
		end = len(cryptos)
	}
	return cryptos[start:end]
}

func renderListing(output *Output, cryptos []models.Crypto, offset int) {
	table := NewTable(output, "#", "NAME", "SYMBOL", "PRICE", "24H", "MARKET CAP", "VOLUME")
	for i, c := range cryptos {
		rank := strconv.Itoa(offset + i + 1)
		if c.MarketCapRank != nil {
			rank = strconv.Itoa(*c.MarketCapRank)
		}
		change := utils.NotAvailable
		if c.PriceChangePercentage24h != nil {
			change = output.Change(*c.PriceChangePercentage24h)
		}
		table.AddRow(
			rank,
			TruncateString(c.Name, 24),
			strings.ToUpper(c.Symbol),
			utils.FormatOptional(c.CurrentPrice, func(v float64) string { return "$" + utils.FormatPrice(v) }),
			change,
			utils.FormatOptional(c.MarketCap, utils.FormatMarketCap),
			utils.FormatOptional(c.TotalVolume, utils.FormatVolume),
		)
	}
	table.Render()
}

func newSearchCmd(app *App) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search coins by name or symbol",
		Args:  exactArgs(1, "cryptolens search <query>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			var (
				results []models.Crypto
				err     error
			)
			if remote {
				results, err = app.Client.Search(ctx, args[0])
			} else {
				var cryptos []models.Crypto
				cryptos, err = app.loadListing(ctx)
				results = market.Filter(cryptos, args[0])
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			if len(results) == 0 {
				output.Warning("No coins match %q", args[0])
				return nil
			}
			renderListing(output, results, 0)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the API directly, bypassing the cache")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details of a coin",
		Args:  exactArgs(1, "cryptolens show <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			id := args[0]

			var (
				c   *models.Crypto
				err error
			)
			if remote {
				c, err = app.Client.GetCrypto(ctx, id)
			} else {
				if _, err = app.loadListing(ctx); err == nil {
					c, err = app.Store.GetCrypto(ctx, id)
				}
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(c)
			}

			output.Bold("%s (%s)", c.Name, strings.ToUpper(c.Symbol))
			if c.MarketCapRank != nil {
				output.Printf("  Rank:        #%d\n", *c.MarketCapRank)
			}
			output.Printf("  Price:       %s\n", utils.FormatOptional(c.CurrentPrice, utils.FormatUSD))
			if c.PriceChangePercentage24h != nil {
				output.Printf("  24h change:  %s\n", output.Change(*c.PriceChangePercentage24h))
			}
			output.Printf("  Market cap:  %s\n", utils.FormatOptional(c.MarketCap, utils.FormatMarketCap))
			output.Printf("  Volume 24h:  %s\n", utils.FormatOptional(c.TotalVolume, utils.FormatVolume))

			// History is optional here: show the trend only when it is cached.
			if points, err := app.Store.GetHistory(ctx, id); err == nil {
				window := series.WindowByPeriod(points, series.Period30d)
				output.Printf("  30d:         %s\n", Sparkline(series.ExtractPrices(window), 40))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the API directly, bypassing the cache")
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show market-wide statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			var stats models.MarketStats
			if remote {
				s, err := app.Client.GetStats(ctx)
				if err != nil {
					return err
				}
				stats = *s
			} else {
				cryptos, err := app.loadListing(ctx)
				if err != nil {
					return err
				}
				stats = market.ComputeStats(cryptos)
			}

			if output.IsJSON() {
				return output.JSON(stats)
			}

			output.Bold("Market statistics")
			output.Printf("  Cryptocurrencies:  %s\n", utils.FormatCount(stats.TotalCryptocurrencies))
			output.Printf("  Total market cap:  %s\n", utils.FormatMarketCap(stats.TotalMarketCap))
			output.Printf("  24h volume:        %s\n", utils.FormatVolume(stats.TotalVolume24h))
			output.Printf("  BTC dominance:     %.2f%%\n", stats.BitcoinDominance)
			output.Printf("  Top gainer:        %s\n", formatMover(output, stats.TopGainer))
			output.Printf("  Top loser:         %s\n", formatMover(output, stats.TopLoser))
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the API directly, bypassing the cache")
	return cmd
}

func formatMover(output *Output, m *models.Mover) string {
	if m == nil {
		return utils.NotAvailable
	}
	return fmt.Sprintf("%s (%s) %s", m.Name, strings.ToUpper(m.Symbol), output.Change(m.Change))
}
