package worldbank

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Fixed columns of every indicator table.
const (
	ColumnCountry          = "country"
	ColumnISO3             = "iso3"
	ColumnYear             = "year"
	ColumnGDPString        = "gdp_string"
	ColumnPopulationString = "population_string"
)

// Table is the persisted indicator dataset: the key columns, one nullable
// DOUBLE column per tracked indicator in tracking order, then the
// human-readable columns of whichever of GDP and population are tracked.
type Table struct {
	columns []string
	derived []string
	rows    []IndicatorRow
}

// NewTable lays out rows for the tracked indicators.
func NewTable(indicators []Indicator, rows []IndicatorRow) Table {
	t := Table{rows: rows}
	for _, ind := range indicators {
		t.columns = append(t.columns, ind.Column)
		switch ind.Column {
		case ColumnGDP:
			t.derived = append(t.derived, ColumnGDPString)
		case ColumnPopulation:
			t.derived = append(t.derived, ColumnPopulationString)
		}
	}
	return t
}

// Len implements export.Table.
func (t Table) Len() int { return len(t.rows) }

// Columns returns the indicator value columns.
func (t Table) Columns() []string { return t.columns }

// CSVHeader implements export.Table.
func (t Table) CSVHeader() []string {
	header := []string{ColumnCountry, ColumnISO3, ColumnYear}
	header = append(header, t.columns...)
	return append(header, t.derived...)
}

// CSVRows implements export.Table. Absent values are empty cells.
func (t Table) CSVRows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		cells := []string{r.Country, r.ISO3, strconv.Itoa(r.Year)}
		for _, column := range t.columns {
			v, ok := r.Value(column)
			if !ok {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, strconv.FormatFloat(v, 'f', -1, 64))
		}
		for _, column := range t.derived {
			cells = append(cells, optString(r.derived(column)))
		}
		out[i] = cells
	}
	return out
}

type schemaNode struct {
	Tag    string       `json:"Tag"`
	Fields []schemaNode `json:"Fields,omitempty"`
}

// ParquetSchema implements export.Table.
func (t Table) ParquetSchema() (string, error) {
	root := schemaNode{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	root.Fields = []schemaNode{
		{Tag: "name=" + ColumnCountry + ", type=BYTE_ARRAY, convertedtype=UTF8"},
		{Tag: "name=" + ColumnISO3 + ", type=BYTE_ARRAY, convertedtype=UTF8"},
		{Tag: "name=" + ColumnYear + ", type=INT32"},
	}
	for _, column := range t.columns {
		root.Fields = append(root.Fields, schemaNode{Tag: "name=" + column + ", type=DOUBLE, repetitiontype=OPTIONAL"})
	}
	for _, column := range t.derived {
		root.Fields = append(root.Fields, schemaNode{Tag: "name=" + column + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"})
	}

	data, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal parquet schema: %w", err)
	}
	return string(data), nil
}

// ParquetRows implements export.Table. Absent values are left out and
// written as nulls.
func (t Table) ParquetRows() ([]string, error) {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		obj := map[string]any{
			ColumnCountry: r.Country,
			ColumnISO3:    r.ISO3,
			ColumnYear:    r.Year,
		}
		for _, column := range t.columns {
			if v, ok := r.Value(column); ok {
				obj[column] = v
			}
		}
		for _, column := range t.derived {
			if s := r.derived(column); s != nil {
				obj[column] = *s
			}
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", i, err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func (r IndicatorRow) derived(column string) *string {
	switch column {
	case ColumnGDPString:
		return r.GDPString
	case ColumnPopulationString:
		return r.PopulationString
	}
	return nil
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
