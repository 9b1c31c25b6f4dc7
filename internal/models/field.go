package models

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericPrefix matches the longest leading decimal number of a cell, the way
// browsers' parseFloat reads "12.5abc" as 12.5.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Field is a raw numeric cell from a history row. It keeps the text it was
// decoded from so that malformed values can be coerced at extraction time.
type Field struct {
	raw string
	set bool
}

// NewField returns a field holding v.
func NewField(v float64) Field {
	return Field{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// ParseField returns a field holding the raw text s. Empty text is unset.
func ParseField(s string) Field {
	s = strings.TrimSpace(s)
	if s == "" {
		return Field{}
	}
	return Field{raw: s, set: true}
}

// IsSet reports whether the cell was present at all.
func (f Field) IsSet() bool {
	return f.set
}

// String returns the raw cell text.
func (f Field) String() string {
	return f.raw
}

// Float parses the cell. It reports false when the cell is missing, has no
// numeric prefix, or is not finite.
func (f Field) Float() (float64, bool) {
	if !f.set {
		return 0, false
	}
	m := numericPrefix.FindString(strings.TrimSpace(f.raw))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Field{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = ParseField(s)
		return nil
	}
	*f = Field{raw: string(data), set: true}
	return nil
}

// MarshalJSON writes parseable cells as numbers, unset cells as null and
// anything else as the original string.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	if v, ok := f.Float(); ok && numericPrefix.FindString(f.raw) == f.raw {
		return json.Marshal(v)
	}
	return json.Marshal(f.raw)
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (f *Field) UnmarshalCSV(s string) error {
	*f = ParseField(s)
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (f Field) MarshalCSV() (string, error) {
	return f.raw, nil
}

// Label is a date label of a history row. Remote rows carry either a date
// string or an ordinal number.
type Label string

// String returns the label text.
func (l Label) String() string {
	return string(l)
}

// Time parses the label as a calendar date or timestamp.
func (l Label) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(l))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON accepts strings and numbers.
func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	*l = Label(data)
	return nil
}
