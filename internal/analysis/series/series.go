// Package series turns raw history rows into numeric price and volume
// sequences and cuts them to the trailing window of a requested period.
package series

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cryptolens/internal/models"
)

// Token is a period selector as offered by the dashboard.
type Token string

const (
	Period24h Token = "24h"
	Period7d  Token = "7d"
	Period30d Token = "30d"
	Period90d Token = "90d"
	Period1y  Token = "1y"
)

// DefaultPeriod is used for unrecognized tokens.
const DefaultPeriod = Period30d

var periodDays = map[Token]int{
	Period24h: 1,
	Period7d:  7,
	Period30d: 30,
	Period90d: 90,
	Period1y:  365,
}

// Tokens returns the recognized period tokens, shortest first.
func Tokens() []Token {
	return []Token{Period24h, Period7d, Period30d, Period90d, Period1y}
}

// Valid reports whether t is a recognized token.
func (t Token) Valid() bool {
	_, ok := periodDays[t]
	return ok
}

// Days returns the trailing point count for t, falling back to 30.
func (t Token) Days() int {
	if d, ok := periodDays[t]; ok {
		return d
	}
	return periodDays[DefaultPeriod]
}

// PriceOf resolves the usable price of a point: close, else price, else 0.
// A value that parses to zero counts as missing.
func PriceOf(p models.PricePoint) float64 {
	if v, ok := p.Close.Float(); ok && v != 0 {
		return v
	}
	if v, ok := p.Price.Float(); ok && v != 0 {
		return v
	}
	return 0
}

// VolumeOf resolves the volume of a point, defaulting to 0.
func VolumeOf(p models.PricePoint) float64 {
	if v, ok := p.Volume.Float(); ok {
		return v
	}
	return 0
}

// ExtractPrices maps every point to its usable price. It never fails.
func ExtractPrices(s models.Series) []float64 {
	prices := make([]float64, len(s))
	for i, p := range s {
		prices[i] = PriceOf(p)
	}
	return prices
}

// ExtractVolumes maps every point to its volume.
func ExtractVolumes(s models.Series) []float64 {
	vols := make([]float64, len(s))
	for i, p := range s {
		vols[i] = VolumeOf(p)
	}
	return vols
}

// WindowByPeriod returns a copy of the trailing points covered by token, or
// the whole series when it is shorter. An empty input yields an empty output.
func WindowByPeriod(s models.Series, token Token) models.Series {
	n := token.Days()
	if len(s) < n {
		n = len(s)
	}
	out := make(models.Series, n)
	copy(out, s[len(s)-n:])
	return out
}

// Merge appends incoming rows to existing ones, dropping rows whose date is
// already present (the first occurrence wins) and sorting by date.
func Merge(existing, incoming models.Series) models.Series {
	seen := make(map[models.Label]struct{}, len(existing)+len(incoming))
	out := make(models.Series, 0, len(existing)+len(incoming))
	for _, batch := range []models.Series{existing, incoming} {
		for _, p := range batch {
			if _, dup := seen[p.Date]; dup {
				continue
			}
			seen[p.Date] = struct{}{}
			out = append(out, p)
		}
	}
	SortByDate(out)
	return out
}

// SortByDate orders points chronologically. Date labels come first by time,
// then ordinal labels by number. Any other labels keep their relative order
// at the end.
func SortByDate(s models.Series) {
	keys := make([]labelKey, len(s))
	for i, p := range s {
		keys[i] = keyOf(p.Date)
	}
	idx := make([]int, len(s))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].less(keys[idx[b]])
	})
	sorted := make(models.Series, len(s))
	for i, j := range idx {
		sorted[i] = s[j]
	}
	copy(s, sorted)
}

const (
	labelDate = iota
	labelOrdinal
	labelText
)

type labelKey struct {
	class int
	t     time.Time
	n     float64
}

func keyOf(l models.Label) labelKey {
	if t, ok := l.Time(); ok {
		return labelKey{class: labelDate, t: t}
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(string(l)), 64); err == nil && !math.IsNaN(n) {
		return labelKey{class: labelOrdinal, n: n}
	}
	return labelKey{class: labelText}
}

func (k labelKey) less(o labelKey) bool {
	if k.class != o.class {
		return k.class < o.class
	}
	switch k.class {
	case labelDate:
		return k.t.Before(o.t)
	case labelOrdinal:
		return k.n < o.n
	}
	return false
}

// MissingDates lists the calendar days between the first and last dated
// points that have no row. Points with unparseable dates are ignored.
func MissingDates(s models.Series) []time.Time {
	present := make(map[string]struct{}, len(s))
	var first, last time.Time
	for _, p := range s {
		t, ok := p.Time()
		if !ok {
			continue
		}
		day := t.UTC().Truncate(24 * time.Hour)
		present[day.Format("2006-01-02")] = struct{}{}
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if first.IsZero() {
		return nil
	}

	var missing []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if _, ok := present[d.Format("2006-01-02")]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
