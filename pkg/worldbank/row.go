package worldbank

import (
	"cmp"
	"slices"
)

// Observation is one non-null value of one indicator.
type Observation struct {
	Country string
	ISO3    string
	Year    int
	Value   float64
}

// IndicatorRow holds every tracked value of a country for one year.
// Values only contains indicators that reported a value.
type IndicatorRow struct {
	Country          string
	ISO3             string
	Year             int
	Values           map[string]float64
	GDPString        *string
	PopulationString *string
}

// Value returns the value of column and whether it was reported.
func (r IndicatorRow) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

type rowKey struct {
	country string
	iso3    string
	year    int
}

// Merge outer-joins per-indicator observations on (country, iso3, year).
// A key present in any table yields a row; missing indicators stay absent.
// Rows are sorted by year, then iso3, then country.
func Merge(tables map[string][]Observation) []IndicatorRow {
	index := make(map[rowKey]int)
	var rows []IndicatorRow

	columns := make([]string, 0, len(tables))
	for column := range tables {
		columns = append(columns, column)
	}
	slices.Sort(columns)

	for _, column := range columns {
		for _, obs := range tables[column] {
			key := rowKey{country: obs.Country, iso3: obs.ISO3, year: obs.Year}
			i, ok := index[key]
			if !ok {
				i = len(rows)
				index[key] = i
				rows = append(rows, IndicatorRow{
					Country: obs.Country,
					ISO3:    obs.ISO3,
					Year:    obs.Year,
					Values:  make(map[string]float64),
				})
			}
			rows[i].Values[column] = obs.Value
		}
	}

	slices.SortStableFunc(rows, compareRows)
	return rows
}

// AddHumanReadable fills GDPString and PopulationString where the
// underlying value is present.
func AddHumanReadable(rows []IndicatorRow) {
	for i := range rows {
		if v, ok := rows[i].Value(ColumnGDP); ok {
			s := HumanReadable(v)
			rows[i].GDPString = &s
		}
		if v, ok := rows[i].Value(ColumnPopulation); ok {
			s := HumanReadable(v)
			rows[i].PopulationString = &s
		}
	}
}

// SortRows orders rows by year, then iso3, then country.
func SortRows(rows []IndicatorRow) {
	slices.SortStableFunc(rows, compareRows)
}

func compareRows(a, b IndicatorRow) int {
	if c := cmp.Compare(a.Year, b.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ISO3, b.ISO3); c != 0 {
		return c
	}
	return cmp.Compare(a.Country, b.Country)
}
