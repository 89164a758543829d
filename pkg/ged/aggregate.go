package ged

import (
	"cmp"
	"slices"
)

type groupKey struct {
	hasCountryID bool
	countryID    int
	country      string
	year         int
}

type group struct {
	row   AggregateRow
	dyads map[int64]struct{}
}

// Aggregate groups rows by (country_id, country, year). Rows without a
// country id form their own groups. The result is sorted by country id
// (missing ids last), then year, then country name.
func Aggregate(rows []NormalizedRow) []AggregateRow {
	groups := make(map[groupKey]*group)

	for _, r := range rows {
		key := groupKey{country: r.Country, year: r.Year}
		if r.CountryID != nil {
			key.hasCountryID = true
			key.countryID = *r.CountryID
		}

		g, ok := groups[key]
		if !ok {
			g = &group{
				row:   AggregateRow{Country: r.Country, Year: r.Year},
				dyads: make(map[int64]struct{}),
			}
			if key.hasCountryID {
				id := key.countryID
				g.row.CountryID = &id
			}
			groups[key] = g
		}

		g.row.Events++
		if r.Best > 0 {
			g.row.EventsFatal++
		}
		g.row.DeathsBest += r.Best
		g.row.DeathsLow += r.Low
		g.row.DeathsHigh += r.High
		g.row.DeathsCivilians += r.DeathsCivilians

		if r.DyadNewID != nil {
			g.dyads[*r.DyadNewID] = struct{}{}
		}

		if r.TypeOfViolence != nil {
			switch *r.TypeOfViolence {
			case ViolenceState:
				g.row.StateEvents++
			case ViolenceNonState:
				g.row.NonStateEvents++
			case ViolenceOneSided:
				g.row.OneSidedEvents++
			}
		}
	}

	out := make([]AggregateRow, 0, len(groups))
	for _, g := range groups {
		g.row.Dyads = int64(len(g.dyads))
		out = append(out, g.row)
	}

	slices.SortFunc(out, compareAggregate)
	return out
}

func compareAggregate(a, b AggregateRow) int {
	switch {
	case a.CountryID == nil && b.CountryID != nil:
		return 1
	case a.CountryID != nil && b.CountryID == nil:
		return -1
	case a.CountryID != nil && b.CountryID != nil:
		if c := cmp.Compare(*a.CountryID, *b.CountryID); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.Year, b.Year); c != 0 {
		return c
	}
	return cmp.Compare(a.Country, b.Country)
}
