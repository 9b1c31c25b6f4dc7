// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// NotAvailable is shown for missing market figures.
const NotAvailable = "N/A"

// FormatUSD formats an amount in dollars with thousands separators and two decimals.
func FormatUSD(amount float64) string {
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// FormatPrice formats a coin price. Sub-cent prices keep six decimals and
// sub-dollar prices four; larger prices use two with separators.
func FormatPrice(price float64) string {
	switch {
	case price == 0:
		return "0"
	case price < 0.01:
		return fmt.Sprintf("%.6f", price)
	case price < 1:
		return fmt.Sprintf("%.4f", price)
	default:
		return humanize.FormatFloat("#,###.##", price)
	}
}

// FormatMarketCap formats a market cap with a T/B/M suffix.
func FormatMarketCap(v float64) string {
	switch {
	case v == 0:
		return NotAvailable
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return "$" + humanize.Commaf(v)
	}
}

// FormatVolume formats a trading volume with a B/M suffix.
func FormatVolume(v float64) string {
	switch {
	case v == 0:
		return NotAvailable
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return "$" + humanize.Commaf(v)
	}
}

// FormatOptional applies format to v, or returns N/A when v is nil.
func FormatOptional(v *float64, format func(float64) string) string {
	if v == nil {
		return NotAvailable
	}
	return format(*v)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatAgo formats t relative to now, e.g. "3 hours ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
