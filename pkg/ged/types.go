package ged

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Violence type codes used by GED.
const (
	ViolenceState    = 1
	ViolenceNonState = 2
	ViolenceOneSided = 3
)

// Count is a casualty count as the API delivers it: a JSON number, a
// numeric string, null or absent. Raw holds the unquoted literal and is
// empty for null or absent values.
type Count struct {
	Raw string
}

// CountOf returns the Count for n.
func CountOf(n int64) Count {
	return Count{Raw: strconv.FormatInt(n, 10)}
}

// UnmarshalJSON implements json.Unmarshaler. It never fails on well-formed
// JSON; values that are not numbers are kept verbatim and repaired later.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		c.Raw = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode count: %w", err)
		}
		c.Raw = strings.TrimSpace(s)
	default:
		c.Raw = string(b)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Count) MarshalJSON() ([]byte, error) {
	if c.Raw == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(c.Raw, 64); err == nil {
		return []byte(c.Raw), nil
	}
	return json.Marshal(c.Raw)
}

// Int parses the count, truncating fractions toward zero. Missing,
// unparsable, non-finite and negative values yield 0.
func (c Count) Int() int64 {
	if c.Raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(c.Raw, 10, 64); err == nil {
		return max(n, 0)
	}
	f, err := strconv.ParseFloat(c.Raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// RawEvent is one GED event as decoded from an API page. Nullable API
// fields are pointers.
type RawEvent struct {
	ID              int64  `json:"id"`
	CountryID       *int   `json:"country_id"`
	Country         string `json:"country"`
	Year            int    `json:"year"`
	DateStart       string `json:"date_start"`
	DyadNewID       *int64 `json:"dyad_new_id"`
	TypeOfViolence  *int   `json:"type_of_violence"`
	Best            Count  `json:"best"`
	Low             Count  `json:"low"`
	High            Count  `json:"high"`
	DeathsCivilians Count  `json:"deaths_civilians"`
}

// Date is a calendar date or an invalid marker.
type Date struct {
	Time  time.Time
	Valid bool
}

// String returns the date as YYYY-MM-DD, or "" when invalid.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(time.DateOnly)
}

// NormalizedRow is a RawEvent with a parsed start date and non-negative
// integer casualty counts.
type NormalizedRow struct {
	ID              int64
	CountryID       *int
	Country         string
	Year            int
	DateStart       Date
	DyadNewID       *int64
	TypeOfViolence  *int
	Best            int64
	Low             int64
	High            int64
	DeathsCivilians int64
}

// AggregateRow summarizes all events of one (country_id, country, year)
// group. CountryID is nil for events without a country id.
type AggregateRow struct {
	CountryID       *int
	Country         string
	Year            int
	Events          int64
	EventsFatal     int64
	DeathsBest      int64
	DeathsLow       int64
	DeathsHigh      int64
	DeathsCivilians int64
	Dyads           int64
	StateEvents     int64
	NonStateEvents  int64
	OneSidedEvents  int64
}
