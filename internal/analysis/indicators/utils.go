package indicators

import (
	"encoding/json"
	"math"

	apperrors "cryptolens/internal/errors"
)

var (
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = apperrors.ErrInvalidPeriod
)

// Value is one indicator reading. Valid is false at positions that lack
// enough trailing history.
type Value struct {
	Value float64
	Valid bool
}

// Defined returns a valid reading.
func Defined(v float64) Value {
	return Value{Value: v, Valid: true}
}

// MarshalJSON encodes undefined readings as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

// UnmarshalJSON decodes null as an undefined reading.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}

// Line is an indicator sequence aligned index-for-index with its price input.
type Line []Value

// NewLine returns an all-undefined line of length n.
func NewLine(n int) Line {
	return make(Line, n)
}

// At returns the reading at i.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l) || !l[i].Valid {
		return 0, false
	}
	return l[i].Value, true
}

// Last returns the last defined reading.
func (l Line) Last() (float64, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Valid {
			return l[i].Value, true
		}
	}
	return 0, false
}

// LastN returns up to n trailing defined readings in chronological order.
func (l Line) LastN(n int) []float64 {
	out := make([]float64, 0, n)
	for i := len(l) - 1; i >= 0 && len(out) < n; i-- {
		if l[i].Valid {
			out = append(out, l[i].Value)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Defined counts the defined readings.
func (l Line) Defined() int {
	n := 0
	for _, v := range l {
		if v.Valid {
			n++
		}
	}
	return n
}

// FirstDefined returns the index of the first defined reading, or -1.
func (l Line) FirstDefined() int {
	for i, v := range l {
		if v.Valid {
			return i
		}
	}
	return -1
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// populationStdDev calculates the standard deviation of values around m,
// dividing by the number of values.
func populationStdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
