package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"cryptolens/internal/analysis/indicators"
	"cryptolens/pkg/utils"
)

// Undefined is shown for indicator positions without enough history.
const Undefined = "-"

// FormatChange formats a percentage change with sign.
func FormatChange(pct float64) string {
	return utils.FormatPercent(pct)
}

// FormatValue formats an indicator reading with two decimals.
func FormatValue(v indicators.Value) string {
	if !v.Valid {
		return Undefined
	}
	return fmt.Sprintf("%.2f", v.Value)
}

// FormatLast formats the last defined reading of a line.
func FormatLast(l indicators.Line) string {
	v, ok := l.Last()
	return FormatValue(indicators.Value{Value: v, Valid: ok})
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a one-line bar chart, sampling down to at most
// width points.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		sampled := make([]float64, width)
		for i := range sampled {
			sampled[i] = values[i*len(values)/width]
		}
		sampled[width-1] = values[len(values)-1]
		values = sampled
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 {
		return ""
	}
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
