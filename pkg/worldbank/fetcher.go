package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/conflict-ingest/pkg/client"
	"github.com/Sternrassler/conflict-ingest/pkg/countrycode"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var countriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_worldbank_countries_total",
	Help: "Countries processed by outcome",
}, []string{"status"})

var indicatorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_worldbank_indicator_failures_total",
	Help: "Indicator requests that failed and were treated as missing data",
}, []string{"indicator", "error_class"})

// API defaults.
const (
	DefaultBaseURL = "https://api.worldbank.org/v2"
	DefaultPerPage = 20000
)

// CountryStatus is the outcome of FetchCountry.
type CountryStatus string

const (
	StatusFetched       CountryStatus = "fetched"
	StatusNoData        CountryStatus = "no_data"
	StatusUnconvertible CountryStatus = "unconvertible"
)

// CountryResult is the outcome of fetching every indicator for one country.
// Rows is empty unless Status is StatusFetched.
type CountryResult struct {
	Name    string
	ISO3    string
	Status  CountryStatus
	Rows    []IndicatorRow
	Missing []string
}

// JSONGetter performs one GET request and decodes the JSON body into out.
type JSONGetter interface {
	GetJSON(ctx context.Context, target string, params url.Values, out any) error
}

// apiRow is one element of the second array in an indicator response.
type apiRow struct {
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	CountryISO3Code string   `json:"countryiso3code"`
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
}

// Fetcher retrieves indicator series for countries.
type Fetcher struct {
	getter     JSONGetter
	converter  countrycode.Converter
	baseURL    string
	indicators []Indicator
	logger     zerolog.Logger
}

// NewFetcher creates a fetcher. Empty baseURL and indicators fall back to
// DefaultBaseURL and DefaultIndicators.
func NewFetcher(getter JSONGetter, converter countrycode.Converter, baseURL string, indicators []Indicator) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(indicators) == 0 {
		indicators = DefaultIndicators
	}
	return &Fetcher{
		getter:     getter,
		converter:  converter,
		baseURL:    strings.TrimRight(baseURL, "/"),
		indicators: indicators,
		logger:     logging.NewLogger("worldbank-fetcher"),
	}
}

// Indicators returns the tracked indicators in output column order.
func (f *Fetcher) Indicators() []Indicator {
	return f.indicators
}

// IndicatorURL returns the endpoint of one country series.
func (f *Fetcher) IndicatorURL(iso3, code string) string {
	return fmt.Sprintf("%s/country/%s/indicator/%s", f.baseURL, url.PathEscape(iso3), url.PathEscape(code))
}

// Params returns the query for an inclusive year window.
func Params(startYear, endYear int) url.Values {
	return url.Values{
		"format":   []string{"json"},
		"date":     []string{fmt.Sprintf("%d:%d", startYear, endYear)},
		"per_page": []string{strconv.Itoa(DefaultPerPage)},
	}
}

// FetchIndicator requests one series and returns its non-null observations
// inside [startYear, endYear].
func (f *Fetcher) FetchIndicator(ctx context.Context, iso3 string, ind Indicator, startYear, endYear int) ([]Observation, error) {
	var payload []json.RawMessage
	target := f.IndicatorURL(iso3, ind.Code)
	if err := f.getter.GetJSON(ctx, target, Params(startYear, endYear), &payload); err != nil {
		return nil, err
	}
	return ParseResponse(payload, startYear, endYear)
}

// ParseResponse decodes the [metadata, rows] envelope. A response without
// a rows element (e.g. an API error message) yields no observations.
func ParseResponse(payload []json.RawMessage, startYear, endYear int) ([]Observation, error) {
	if len(payload) < 2 {
		return nil, nil
	}

	var rows []apiRow
	if err := json.Unmarshal(payload[1], &rows); err != nil {
		return nil, &client.DecodeError{Err: fmt.Errorf("decode indicator rows: %w", err)}
	}

	observations := make([]Observation, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(row.Date))
		if err != nil || year < startYear || year > endYear {
			continue
		}
		observations = append(observations, Observation{
			Country: row.Country.Value,
			ISO3:    row.CountryISO3Code,
			Year:    year,
			Value:   *row.Value,
		})
	}
	return observations, nil
}

// FetchCountry fetches every tracked indicator for a country name. A failing
// indicator is logged and treated as missing. Unconvertible names and
// countries without any data are reported through Status, never as errors.
func (f *Fetcher) FetchCountry(ctx context.Context, name string, startYear, endYear int) CountryResult {
	result := CountryResult{Name: name}
	logger := f.logger.With().Str("country", name).Logger()

	conv := countrycode.Convert(f.converter, name)
	if !conv.OK {
		logger.Warn().Msg("Could not convert country name to an ISO3 code, skipping")
		result.Status = StatusUnconvertible
		countriesTotal.WithLabelValues(string(result.Status)).Inc()
		return result
	}
	iso3 := conv.ISO3
	result.ISO3 = iso3

	tables := make(map[string][]Observation, len(f.indicators))
	for _, ind := range f.indicators {
		observations, err := f.FetchIndicator(ctx, iso3, ind, startYear, endYear)
		if err != nil {
			class := client.Classify(err)
			indicatorFailuresTotal.WithLabelValues(ind.Code, string(class)).Inc()
			logger.Warn().
				Err(err).
				Str("iso3", iso3).
				Str("indicator", ind.Code).
				Str("error_class", string(class)).
				Msg("Indicator request failed, treating as no data")
		}
		if len(observations) == 0 {
			logger.Info().Str("indicator", ind.Column).Msg("No data for indicator")
			result.Missing = append(result.Missing, ind.Column)
			continue
		}
		tables[ind.Column] = observations
	}

	if len(tables) == 0 {
		logger.Warn().Str("iso3", iso3).Msg("No indicator data found")
		result.Status = StatusNoData
		countriesTotal.WithLabelValues(string(result.Status)).Inc()
		return result
	}

	result.Rows = Merge(tables)
	AddHumanReadable(result.Rows)
	result.Status = StatusFetched
	countriesTotal.WithLabelValues(string(result.Status)).Inc()

	logger.Info().
		Str("iso3", iso3).
		Int("rows", len(result.Rows)).
		Int("indicators", len(tables)).
		Msg("Country indicators merged")
	return result
}
