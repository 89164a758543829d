package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/conflict-ingest/pkg/export"
	"github.com/Sternrassler/conflict-ingest/pkg/ged"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/pagination"
	"github.com/Sternrassler/conflict-ingest/pkg/ratelimit"
	"github.com/Sternrassler/conflict-ingest/pkg/storage"
)

const conflictPipeline = "ucdp"

// ConflictConfig configures a conflict-event run.
type ConflictConfig struct {
	StartYear  int
	EndYear    int
	PageSize   int
	Pagination pagination.Config
	Output     OutputConfig
}

// EntityReport is the retrieval outcome of one country code.
type EntityReport struct {
	Code  int
	Stats pagination.Stats
	Err   error
}

// ConflictReport summarizes a conflict-event run.
type ConflictReport struct {
	RunID      string
	Entities   []EntityReport
	Events     int
	Aggregates int
	Results    []export.Result
}

// Conflict runs UCDP GED ingestion: paginate every country into one
// accumulator, normalize, aggregate, persist raw and aggregated tables.
type Conflict struct {
	fetcher   *ged.Fetcher
	paginator *pagination.Paginator[ged.RawEvent]
	writer    *export.Writer
	cfg       ConflictConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// NewConflict creates a conflict pipeline. A nil sleeper sleeps for real.
func NewConflict(fetcher *ged.Fetcher, sleeper ratelimit.Sleeper, sink storage.Sink, cfg ConflictConfig) *Conflict {
	cfg.Output = cfg.Output.withDefaults("test-data")
	logger := logging.NewLogger("ucdp-pipeline")
	return &Conflict{
		fetcher:   fetcher,
		paginator: pagination.NewPaginator[ged.RawEvent](fetcher, sleeper, cfg.Pagination, logger),
		writer:    export.NewWriter(sink, logger),
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// Run retrieves every code in order. A retrieval failure aborts the run
// before anything is written. Storage failures are reported per
// destination in the report and combined into the returned error.
func (p *Conflict) Run(ctx context.Context, codes []int) (report ConflictReport, err error) {
	start := time.Now()
	defer func() { finishRun(conflictPipeline, start, err) }()

	report.RunID = newRunID()
	logger := logging.WithRun(p.logger, conflictPipeline, report.RunID)
	logger.Info().
		Ints("country_codes", codes).
		Int("start_year", p.cfg.StartYear).
		Int("end_year", p.cfg.EndYear).
		Msg("Starting conflict-event run")

	var events []ged.RawEvent
	for _, code := range codes {
		entityLogger := logger.With().Int("country_code", code).Logger()
		entityLogger.Info().Msg("Starting retrieval")

		before := len(events)
		query := ged.Query{Country: code, StartYear: p.cfg.StartYear, EndYear: p.cfg.EndYear, PageSize: p.cfg.PageSize}
		stats, fetchErr := p.paginator.FetchAll(ctx, p.fetcher.EventsURL(), query.Values(), &events)
		report.Entities = append(report.Entities, EntityReport{Code: code, Stats: stats, Err: fetchErr})

		if fetchErr != nil {
			entitiesTotal.WithLabelValues(conflictPipeline, "failed").Inc()
			entityLogger.Error().Err(fetchErr).Str("state", stats.State.String()).Msg("Retrieval failed, aborting run")
			return report, fmt.Errorf("country %d: %w", code, fetchErr)
		}

		entitiesTotal.WithLabelValues(conflictPipeline, "fetched").Inc()
		entityLogger.Info().
			Int("records", len(events)-before).
			Int("pages", stats.Pages).
			Int("backoffs", stats.Backoffs).
			Int("total_records", len(events)).
			Msg("Retrieval complete")
	}

	report.Events = len(events)
	if len(events) == 0 {
		logger.Warn().Msg("No events retrieved, nothing to write")
		return report, ErrNoRecords
	}

	rows := ged.Normalize(events)
	aggregates := ged.Aggregate(rows)
	report.Aggregates = len(aggregates)

	logger.Info().
		Int("events", len(rows)).
		Int("country_years", len(aggregates)).
		Msg("Aggregation complete")

	at := p.now()
	out := p.cfg.Output
	rawDest := export.Destination{Container: out.Container, Path: export.TimestampedPath("raw", "events", at, out.Format)}
	aggDest := export.Destination{Container: out.Container, Path: export.TimestampedPath("processed", "aggregated", at, out.Format)}

	report.Results = []export.Result{
		export.WriteTable(ctx, p.writer, rawDest, out.Format, out.Compression, ged.EventRecords(rows)),
		export.WriteTable(ctx, p.writer, aggDest, out.Format, out.Compression, ged.AggregateRecords(aggregates)),
	}
	for i, dataset := range []string{"ged_events", "ged_aggregates"} {
		if r := report.Results[i]; r.OK {
			rowsWrittenTotal.WithLabelValues(dataset).Add(float64(r.Rows))
		}
	}

	if err := export.Errors(report.Results); err != nil {
		return report, fmt.Errorf("persist datasets: %w", err)
	}

	logger.Info().Int("events", report.Events).Int("country_years", report.Aggregates).Msg("Conflict-event run complete")
	return report, nil
}

// FailedEntities returns the codes whose retrieval failed.
func (r ConflictReport) FailedEntities() []int {
	var failed []int
	for _, e := range r.Entities {
		if e.Err != nil {
			failed = append(failed, e.Code)
		}
	}
	return failed
}
