package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/conflict-ingest/pkg/export"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/storage"
	"github.com/Sternrassler/conflict-ingest/pkg/worldbank"
)

const indicatorPipeline = "worldbank"

// IndicatorConfig configures a World Bank run.
type IndicatorConfig struct {
	StartYear int
	EndYear   int
	Output    OutputConfig
}

// CountrySummary is the outcome of one country without its rows.
type CountrySummary struct {
	Name    string
	ISO3    string
	Status  worldbank.CountryStatus
	Rows    int
	Missing []string
}

// IndicatorReport summarizes a World Bank run.
type IndicatorReport struct {
	RunID     string
	Countries []CountrySummary
	Rows      int
	Result    *export.Result
}

// Skipped returns the countries that produced no rows.
func (r IndicatorReport) Skipped() []CountrySummary {
	var skipped []CountrySummary
	for _, c := range r.Countries {
		if c.Status != worldbank.StatusFetched {
			skipped = append(skipped, c)
		}
	}
	return skipped
}

// Indicators runs World Bank ingestion for a list of country names.
type Indicators struct {
	fetcher *worldbank.Fetcher
	writer  *export.Writer
	cfg     IndicatorConfig
	logger  zerolog.Logger
}

// NewIndicators creates an indicator pipeline.
func NewIndicators(fetcher *worldbank.Fetcher, sink storage.Sink, cfg IndicatorConfig) *Indicators {
	cfg.Output = cfg.Output.withDefaults("worldbank-data")
	logger := logging.NewLogger("worldbank-pipeline")
	return &Indicators{
		fetcher: fetcher,
		writer:  export.NewWriter(sink, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// OutputPath returns processed/worldbank/worldbank_data_{start}_{end}.{ext}.
func (p *Indicators) OutputPath() string {
	return fmt.Sprintf("processed/worldbank/worldbank_data_%d_%d%s", p.cfg.StartYear, p.cfg.EndYear, p.cfg.Output.Format.Ext())
}

// Run fetches every country, skipping unconvertible names and countries
// without data, and writes one combined table sorted by year.
func (p *Indicators) Run(ctx context.Context, countries []string) (report IndicatorReport, err error) {
	start := time.Now()
	defer func() { finishRun(indicatorPipeline, start, err) }()

	report.RunID = newRunID()
	logger := logging.WithRun(p.logger, indicatorPipeline, report.RunID)
	logger.Info().
		Strs("countries", countries).
		Int("start_year", p.cfg.StartYear).
		Int("end_year", p.cfg.EndYear).
		Msg("Starting indicator run")

	var rows []worldbank.IndicatorRow
	for _, name := range countries {
		res := p.fetcher.FetchCountry(ctx, name, p.cfg.StartYear, p.cfg.EndYear)
		entitiesTotal.WithLabelValues(indicatorPipeline, string(res.Status)).Inc()
		report.Countries = append(report.Countries, CountrySummary{
			Name:    res.Name,
			ISO3:    res.ISO3,
			Status:  res.Status,
			Rows:    len(res.Rows),
			Missing: res.Missing,
		})
		rows = append(rows, res.Rows...)
	}

	report.Rows = len(rows)
	if len(rows) == 0 {
		logger.Warn().Msg("No data found for any country, nothing to write")
		return report, ErrNoRecords
	}

	worldbank.SortRows(rows)
	logger.Info().
		Int("rows", len(rows)).
		Int("countries", len(countries)-len(report.Skipped())).
		Msg("Indicator rows merged")

	out := p.cfg.Output
	dest := export.Destination{Container: out.Container, Path: p.OutputPath()}
	table := worldbank.NewTable(p.fetcher.Indicators(), rows)
	res := export.WriteDynamic(ctx, p.writer, dest, out.Format, out.Compression, table)
	report.Result = &res
	if !res.OK {
		return report, fmt.Errorf("persist dataset: %w", export.Errors([]export.Result{res}))
	}

	rowsWrittenTotal.WithLabelValues("worldbank_indicators").Add(float64(res.Rows))
	logger.Info().Str("destination", dest.String()).Msg("Indicator run complete")
	return report, nil
}
