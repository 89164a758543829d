package ged

import (
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing date_start.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05.000",
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006/01/02",
}

// ParseDate parses a free-text date into a calendar date. Unparsable input
// yields an invalid Date rather than an error.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}
	return Date{}
}

// Normalize repairs every event into a NormalizedRow. It never drops rows
// and preserves input order.
func Normalize(events []RawEvent) []NormalizedRow {
	rows := make([]NormalizedRow, len(events))
	for i, e := range events {
		rows[i] = NormalizedRow{
			ID:              e.ID,
			CountryID:       e.CountryID,
			Country:         e.Country,
			Year:            e.Year,
			DateStart:       ParseDate(e.DateStart),
			DyadNewID:       e.DyadNewID,
			TypeOfViolence:  e.TypeOfViolence,
			Best:            e.Best.Int(),
			Low:             e.Low.Int(),
			High:            e.High.Int(),
			DeathsCivilians: e.DeathsCivilians.Int(),
		}
	}
	return rows
}

// Denormalize converts rows back to events; Normalize(Denormalize(rows))
// reproduces rows.
func Denormalize(rows []NormalizedRow) []RawEvent {
	events := make([]RawEvent, len(rows))
	for i, r := range rows {
		events[i] = RawEvent{
			ID:              r.ID,
			CountryID:       r.CountryID,
			Country:         r.Country,
			Year:            r.Year,
			DateStart:       r.DateStart.String(),
			DyadNewID:       r.DyadNewID,
			TypeOfViolence:  r.TypeOfViolence,
			Best:            CountOf(r.Best),
			Low:             CountOf(r.Low),
			High:            CountOf(r.High),
			DeathsCivilians: CountOf(r.DeathsCivilians),
		}
	}
	return events
}
