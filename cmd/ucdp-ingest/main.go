// Command ucdp-ingest retrieves UCDP GED events for a list of countries,
// aggregates them to country-years and writes both tables to storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/conflict-ingest/internal/app"
	"github.com/Sternrassler/conflict-ingest/pkg/config"
	"github.com/Sternrassler/conflict-ingest/pkg/ged"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/metrics"
	"github.com/Sternrassler/conflict-ingest/pkg/pipeline"
	"github.com/Sternrassler/conflict-ingest/pkg/ratelimit"
	"github.com/Sternrassler/conflict-ingest/pkg/refdata"
)

func main() {
	configPath := flag.String("config", getEnv("CONFIG_FILE", ""), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	cfg.Logging.Service = "ucdp-ingest"
	logger := logging.Setup(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	if err := run(ctx, cfg, nil, logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		cancel()
		os.Exit(1)
	}
}

// run executes one conflict-event ingestion. A nil sleeper sleeps for real.
func run(ctx context.Context, cfg config.Config, sleeper ratelimit.Sleeper, logger zerolog.Logger) error {
	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	headers := map[string]string{}
	if cfg.UCDP.AccessToken != "" {
		headers[ged.AccessTokenHeader] = cfg.UCDP.AccessToken
	}
	httpClient, err := res.NewClient("ucdp", headers)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	codes := cfg.UCDP.Countries
	if cfg.UCDP.CodesFromReference {
		codes, err = refdata.LoadCodes(ctx, res.Sink, cfg.UCDP.ReferenceContainer, cfg.UCDP.ReferenceObject, cfg.UCDP.ReferenceColumn)
		if err != nil {
			return fmt.Errorf("load country codes: %w", err)
		}
		logger.Info().Int("codes", len(codes)).Msg("Loaded country codes from reference table")
	}

	output, err := app.Output(cfg, cfg.UCDP.Container)
	if err != nil {
		return err
	}

	fetcher := ged.NewFetcher(httpClient, cfg.UCDP.BaseURL, cfg.UCDP.Version)
	p := pipeline.NewConflict(fetcher, sleeper, res.Sink, pipeline.ConflictConfig{
		StartYear:  cfg.StartYear,
		EndYear:    cfg.EndYear,
		PageSize:   cfg.UCDP.PageSize,
		Pagination: cfg.UCDP.Pagination,
		Output:     output,
	})

	report, err := p.Run(ctx, codes)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			logger.Warn().Str("run_id", report.RunID).Msg("No events found for any country")
		}
		return err
	}

	for _, r := range report.Results {
		logger.Info().
			Str("run_id", report.RunID).
			Str("destination", r.Destination.String()).
			Int("rows", r.Rows).
			Msg("Saved to storage")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
