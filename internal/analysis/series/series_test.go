package series

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cryptolens/internal/models"
)

func point(date string, close, price, volume string) models.PricePoint {
	return models.PricePoint{
		Date:   models.Label(date),
		Close:  models.ParseField(close),
		Price:  models.ParseField(price),
		Volume: models.ParseField(volume),
	}
}

func TestExtractPrices(t *testing.T) {
	tests := []struct {
		name string
		p    models.PricePoint
		want float64
	}{
		{"close wins", point("2024-01-01", "101.5", "99", ""), 101.5},
		{"price fallback", point("2024-01-01", "", "99", ""), 99},
		{"unparseable close", point("2024-01-01", "n/a", "42", ""), 42},
		{"numeric prefix", point("2024-01-01", "12.5usd", "", ""), 12.5},
		{"zero close falls through", point("2024-01-01", "0", "7", ""), 7},
		{"nothing usable", point("2024-01-01", "abc", "", ""), 0},
		{"all missing", models.PricePoint{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPrices(models.Series{tt.p})
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("ExtractPrices() = %v, want [%v]", got, tt.want)
			}
		})
	}
}

func TestExtractVolumes(t *testing.T) {
	s := models.Series{
		point("2024-01-01", "1", "", "1500"),
		point("2024-01-02", "1", "", ""),
		point("2024-01-03", "1", "", "bad"),
	}
	got := ExtractVolumes(s)
	want := []float64{1500, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("volume[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenDays(t *testing.T) {
	tests := map[Token]int{
		Period24h: 1,
		Period7d:  7,
		Period30d: 30,
		Period90d: 90,
		Period1y:  365,
		"5y":      30,
		"":        30,
	}
	for token, want := range tests {
		if got := token.Days(); got != want {
			t.Errorf("Token(%q).Days() = %d, want %d", token, got, want)
		}
	}
}

func makeSeries(n int) models.Series {
	s := make(models.Series, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = models.PricePoint{
			Date:  models.Label(start.AddDate(0, 0, i).Format("2006-01-02")),
			Close: models.NewField(float64(i + 1)),
		}
	}
	return s
}

func TestWindowByPeriod(t *testing.T) {
	s := makeSeries(40)

	w := WindowByPeriod(s, Period7d)
	if len(w) != 7 {
		t.Fatalf("len = %d, want 7", len(w))
	}
	if got := PriceOf(w[0]); got != 34 {
		t.Errorf("first windowed price = %v, want 34", got)
	}

	if got := len(WindowByPeriod(s, Period1y)); got != 40 {
		t.Errorf("short series should be returned whole, got %d", got)
	}
	if got := len(WindowByPeriod(s, "bogus")); got != 30 {
		t.Errorf("unknown token should default to 30, got %d", got)
	}
	if got := len(WindowByPeriod(nil, Period7d)); got != 0 {
		t.Errorf("empty input should give empty window, got %d", got)
	}

	w[0].Source = "mutated"
	if s[33].Source != "" {
		t.Error("window must not alias the input series")
	}
}

func TestProperty_WindowIsTrailingSuffix(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	tokenGen := gen.OneConstOf(Period24h, Period7d, Period30d, Period90d, Period1y, Token("x"))

	properties.Property("window length is min(len, days) and matches the tail", prop.ForAll(
		func(n int, token Token) bool {
			s := makeSeries(n)
			w := WindowByPeriod(s, token)
			want := token.Days()
			if n < want {
				want = n
			}
			if len(w) != want {
				return false
			}
			for i := range w {
				if w[i].Date != s[n-want+i].Date {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 400),
		tokenGen,
	))

	properties.TestingRun(t)
}

func TestMerge(t *testing.T) {
	existing := models.Series{
		point("2024-01-02", "20", "", ""),
		point("2024-01-01", "10", "", ""),
	}
	incoming := models.Series{
		point("2024-01-02", "999", "", ""),
		point("2024-01-03", "30", "", ""),
	}

	got := Merge(existing, incoming)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []float64{10, 20, 30}
	for i, p := range got {
		if PriceOf(p) != want[i] {
			t.Errorf("merged[%d] = %v, want %v", i, PriceOf(p), want[i])
		}
	}
}

func TestSortByDateOrdinalLabels(t *testing.T) {
	var s models.Series
	for _, d := range []string{"10", "1", "11", "9", "2"} {
		s = append(s, point(d, d, "", ""))
	}
	SortByDate(s)
	want := []string{"1", "2", "9", "10", "11"}
	for i, p := range s {
		if p.Date.String() != want[i] {
			t.Fatalf("order = %v, want %v", s.Dates(), want)
		}
	}
	if last := WindowByPeriod(s, Period24h); PriceOf(last[0]) != 11 {
		t.Errorf("24h window = %v, want the point labelled 11", last.Dates())
	}

	merged := Merge(models.Series{point("2", "2", "", ""), point("10", "10", "", "")}, models.Series{point("9", "9", "", "")})
	if got := fmt.Sprint(merged.Dates()); got != "[2 9 10]" {
		t.Errorf("Merge order = %s", got)
	}
}

func TestSortByDateMixedLabels(t *testing.T) {
	s := models.Series{
		point("zeta", "1", "", ""),
		point("3", "1", "", ""),
		point("2024-01-02", "1", "", ""),
		point("alpha", "1", "", ""),
		point("2024-01-01", "1", "", ""),
		point("1", "1", "", ""),
	}
	SortByDate(s)
	want := "[2024-01-01 2024-01-02 1 3 zeta alpha]"
	if got := fmt.Sprint(s.Dates()); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestMissingDates(t *testing.T) {
	s := models.Series{
		point("2024-01-01", "1", "", ""),
		point("2024-01-02", "1", "", ""),
		point("2024-01-05", "1", "", ""),
		point("not-a-date", "1", "", ""),
	}
	missing := MissingDates(s)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want 2 days", missing)
	}
	for i, want := range []string{"2024-01-03", "2024-01-04"} {
		if got := missing[i].Format("2006-01-02"); got != want {
			t.Errorf("missing[%d] = %s, want %s", i, got, want)
		}
	}

	if MissingDates(makeSeries(10)) != nil {
		t.Error("contiguous series should have no gaps")
	}
	if MissingDates(nil) != nil {
		t.Error("empty series should have no gaps")
	}
}

func ExampleWindowByPeriod() {
	w := WindowByPeriod(makeSeries(10), Period7d)
	fmt.Println(len(w), ExtractPrices(w)[0])
	// Output: 7 4
}
