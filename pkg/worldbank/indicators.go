// Package worldbank fetches World Bank indicator series per country and
// merges them into one row per (country, iso3, year).
package worldbank

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Indicator is a tracked World Bank series and the column it lands in.
type Indicator struct {
	Code   string `yaml:"code"`
	Column string `yaml:"column"`
}

// Column names of the default indicators.
const (
	ColumnGDP          = "gdp_usd"
	ColumnPopulation   = "population"
	ColumnMilExpPctGDP = "mil_exp_pct_gdp"
	ColumnMilExpUSD    = "mil_exp_usd"
)

// DefaultIndicators are fetched in this order.
var DefaultIndicators = []Indicator{
	{Code: "NY.GDP.MKTP.CD", Column: ColumnGDP},
	{Code: "SP.POP.TOTL", Column: ColumnPopulation},
	{Code: "MS.MIL.XPND.GD.ZS", Column: ColumnMilExpPctGDP},
	{Code: "MS.MIL.XPND.CD", Column: ColumnMilExpUSD},
}

var columnName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// CheckIndicators reports indicators that cannot become a table column:
// missing code, a column that is not a lower-case identifier, a duplicate,
// or a clash with the key and human-readable columns.
func CheckIndicators(indicators []Indicator) error {
	var errs []error
	seen := map[string]bool{
		ColumnCountry:          true,
		ColumnISO3:             true,
		ColumnYear:             true,
		ColumnGDPString:        true,
		ColumnPopulationString: true,
	}
	for _, ind := range indicators {
		switch {
		case ind.Code == "":
			errs = append(errs, fmt.Errorf("indicator for column %q has no code", ind.Column))
		case !columnName.MatchString(ind.Column):
			errs = append(errs, fmt.Errorf("indicator %s: invalid column name %q", ind.Code, ind.Column))
		case seen[ind.Column]:
			errs = append(errs, fmt.Errorf("indicator %s: column %q already used", ind.Code, ind.Column))
		}
		seen[ind.Column] = true
	}
	return errors.Join(errs...)
}

// HumanReadable abbreviates large values: one decimal with T, B or M,
// no decimals with K. Other values, negatives included, print in plain
// decimal notation with a trailing ".0" when integral; magnitudes from 1e16
// or below 1e-4 use exponent notation.
func HumanReadable(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.1f T", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.1f B", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1f M", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.0f K", v/1e3)
	}

	abs := math.Abs(v)
	if math.IsNaN(v) || abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
