package market

import (
	"strings"

	"cryptolens/internal/models"
)

// BitcoinID is the listing id used for the dominance figure.
const BitcoinID = "bitcoin"

// ComputeStats aggregates a listing. Missing market caps and volumes count as
// zero; gainer and loser are nil when no coin reports a 24h change.
func ComputeStats(cryptos []models.Crypto) models.MarketStats {
	stats := models.MarketStats{TotalCryptocurrencies: len(cryptos)}

	var btcCap float64
	for _, c := range cryptos {
		stats.TotalMarketCap += deref(c.MarketCap)
		stats.TotalVolume24h += deref(c.TotalVolume)
		if c.ID == BitcoinID {
			btcCap = deref(c.MarketCap)
		}

		if c.PriceChangePercentage24h == nil {
			continue
		}
		change := *c.PriceChangePercentage24h
		if stats.TopGainer == nil || change > stats.TopGainer.Change {
			stats.TopGainer = mover(c)
		}
		if stats.TopLoser == nil || change < stats.TopLoser.Change {
			stats.TopLoser = mover(c)
		}
	}

	if stats.TotalMarketCap > 0 {
		stats.BitcoinDominance = btcCap / stats.TotalMarketCap * 100
	}
	return stats
}

// Filter returns the coins whose name or symbol contains query,
// case-insensitively. An empty query matches nothing.
func Filter(cryptos []models.Crypto, query string) []models.Crypto {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Crypto{}
	if q == "" {
		return out
	}
	for _, c := range cryptos {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Symbol), q) {
			out = append(out, c)
		}
	}
	return out
}

// Top returns the first n coins of a listing.
func Top(cryptos []models.Crypto, n int) []models.Crypto {
	if n <= 0 {
		return []models.Crypto{}
	}
	if n > len(cryptos) {
		n = len(cryptos)
	}
	return cryptos[:n]
}

func mover(c models.Crypto) *models.Mover {
	return &models.Mover{Name: c.Name, Symbol: c.Symbol, Change: *c.PriceChangePercentage24h}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
