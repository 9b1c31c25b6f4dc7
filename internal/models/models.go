// Package models provides domain models for the market dashboard.
package models

import (
	"time"
)

// dateLayouts are the layouts accepted for history row dates, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// PricePoint is one historical observation. Any numeric field may be missing;
// Price is the single-quote fallback when the row carries no close.
type PricePoint struct {
	Date   Label  `json:"date" csv:"date"`
	Open   Field  `json:"open" csv:"open"`
	High   Field  `json:"high" csv:"high"`
	Low    Field  `json:"low" csv:"low"`
	Close  Field  `json:"close" csv:"close"`
	Volume Field  `json:"volume" csv:"volume"`
	Price  Field  `json:"price" csv:"price"`
	Source string `json:"source,omitempty" csv:"source"`
}

// Time parses the point's date label.
func (p PricePoint) Time() (time.Time, bool) {
	return p.Date.Time()
}

// Series is an ordered, chronologically ascending sequence of price points.
type Series []PricePoint

// Dates returns the date labels of the series.
func (s Series) Dates() []string {
	labels := make([]string, len(s))
	for i, p := range s {
		labels[i] = p.Date.String()
	}
	return labels
}

// Crypto is a listed cryptocurrency as returned by the market listing.
type Crypto struct {
	ID                       string   `json:"id" csv:"id"`
	Symbol                   string   `json:"symbol" csv:"symbol"`
	Name                     string   `json:"name" csv:"name"`
	MarketCapRank            *int     `json:"market_cap_rank" csv:"market_cap_rank"`
	CurrentPrice             *float64 `json:"current_price" csv:"current_price"`
	MarketCap                *float64 `json:"market_cap" csv:"market_cap"`
	TotalVolume              *float64 `json:"total_volume" csv:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h" csv:"price_change_percentage_24h"`
}

// Mover is a compact view of the top gainer or loser.
type Mover struct {
	Name   string  `json:"name"`
	Symbol string  `json:"symbol"`
	Change float64 `json:"change"`
}

// MarketStats aggregates the listing into market-wide figures.
type MarketStats struct {
	TotalCryptocurrencies int     `json:"total_cryptocurrencies"`
	TotalMarketCap        float64 `json:"total_market_cap"`
	TotalVolume24h        float64 `json:"total_volume_24h"`
	BitcoinDominance      float64 `json:"bitcoin_dominance"`
	TopGainer             *Mover  `json:"top_gainer"`
	TopLoser              *Mover  `json:"top_loser"`
}
