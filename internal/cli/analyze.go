package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cryptolens/internal/analysis"
	"cryptolens/internal/analysis/indicators"
	"cryptolens/pkg/utils"
)

func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var (
		indicator string
		period    string
		all       bool
		points    int
	)
	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run technical analysis on a coin's price history",
		Long: `Compute an indicator over the trailing window of a coin's history and
summarize trend, support/resistance, volatility and a recommendation.

Indicators: sma, ema, rsi, macd, bollinger
Periods:    ` + describePeriods(),
		Example: `  cryptolens analyze bitcoin
  cryptolens analyze ethereum --indicator rsi --period 90d
  cryptolens analyze solana --all --json`,
		Args: exactArgs(1, "cryptolens analyze <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			id := args[0]

			history, err := app.loadHistory(ctx, id)
			if err != nil {
				return err
			}
			req := analysis.Request{
				CryptoID:  id,
				Series:    history,
				Indicator: indicators.Kind(strings.ToLower(indicator)),
				Period:    periodOrDefault(period, app),
			}

			if all {
				results, err := app.Analyzer.AnalyzeAll(ctx, req)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(results)
				}
				renderAnalysisSummary(output, id, results)
				return nil
			}

			result, err := app.Analyzer.Analyze(ctx, req)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(result)
			}
			renderAnalysis(output, app.Analyzer.Params(), result, points)
			return nil
		},
	}
	cmd.Flags().StringVarP(&indicator, "indicator", "i", string(indicators.KindSMA), "sma, ema, rsi, macd or bollinger")
	cmd.Flags().StringVarP(&period, "period", "p", "", "trailing period: 24h, 7d, 30d, 90d, 1y")
	cmd.Flags().BoolVar(&all, "all", false, "run every indicator")
	cmd.Flags().IntVarP(&points, "points", "n", 10, "trailing indicator values to print")
	return cmd
}

// indicatorName returns the display name with its parameters.
func indicatorName(p analysis.Params, kind indicators.Kind) string {
	switch kind {
	case indicators.KindSMA:
		return "SMA(" + strconv.Itoa(p.SMAPeriod) + ")"
	case indicators.KindEMA:
		return "EMA(" + strconv.Itoa(p.EMAPeriod) + ")"
	case indicators.KindRSI:
		return "RSI(" + strconv.Itoa(p.RSIPeriod) + ")"
	case indicators.KindMACD:
		return "MACD(" + strconv.Itoa(p.MACDFast) + "," + strconv.Itoa(p.MACDSlow) + ")"
	case indicators.KindBollinger:
		return "Bollinger(" + strconv.Itoa(p.BollingerPeriod) + ")"
	default:
		return string(kind)
	}
}

func renderAnalysis(output *Output, params analysis.Params, r *analysis.Result, points int) {
	output.Bold("%s · %s · %s", r.CryptoID, indicatorName(params, r.Indicator), r.Period)
	output.Dim("%s over %d points", r.Indicator.Title(), len(r.Prices))
	output.Printf("  %s\n\n", Sparkline(r.Prices, 60))

	levels := r.Levels()
	output.Printf("  Trend:           %s\n", output.Trend(r.Trend))
	output.Printf("  Support:         %s\n", utils.FormatUSD(levels.Support))
	output.Printf("  Resistance:      %s\n", utils.FormatUSD(levels.Resistance))
	output.Printf("  Volatility:      %s\n", output.Volatility(r.Volatility))
	output.Printf("  Recommendation:  %s\n", output.Recommendation(r.Recommendation))
	output.Println()

	if points <= 0 {
		return
	}
	start := len(r.Prices) - points
	if start < 0 {
		start = 0
	}

	if r.Bands != nil {
		table := NewTable(output, "DATE", "PRICE", "UPPER", "MIDDLE", "LOWER")
		for i := start; i < len(r.Prices); i++ {
			table.AddRow(r.Dates[i], utils.FormatPrice(r.Prices[i]),
				FormatValue(r.Bands.Upper[i]), FormatValue(r.Bands.Middle[i]), FormatValue(r.Bands.Lower[i]))
		}
		table.Render()
		return
	}

	table := NewTable(output, "DATE", "PRICE", strings.ToUpper(string(r.Indicator)))
	for i := start; i < len(r.Prices); i++ {
		table.AddRow(r.Dates[i], utils.FormatPrice(r.Prices[i]), FormatValue(r.Line[i]))
	}
	table.Render()
}

func renderAnalysisSummary(output *Output, id string, results map[indicators.Kind]*analysis.Result) {
	kinds := make([]indicators.Kind, 0, len(results))
	for k := range results {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kindOrder(kinds[i]) < kindOrder(kinds[j]) })

	var ref *analysis.Result
	table := NewTable(output, "INDICATOR", "LAST", "TREND", "RECOMMENDATION")
	for _, k := range kinds {
		r := results[k]
		ref = r
		var last string
		if r.Bands != nil {
			last = FormatLast(r.Bands.Middle)
		} else {
			last = FormatLast(r.Line)
		}
		table.AddRow(strings.ToUpper(string(k)), last, output.Trend(r.Trend), output.Recommendation(r.Recommendation))
	}

	if ref != nil {
		levels := ref.Levels()
		output.Bold("%s · %s · %d points", id, ref.Period, len(ref.Prices))
		output.Printf("  Support %s  Resistance %s  Volatility %s\n\n",
			utils.FormatUSD(levels.Support), utils.FormatUSD(levels.Resistance), output.Volatility(ref.Volatility))
	}
	table.Render()
}

func kindOrder(k indicators.Kind) int {
	for i, known := range indicators.Kinds() {
		if k == known {
			return i
		}
	}
	return len(indicators.Kinds())
}
