// Command worldbank-ingest fetches World Bank indicators for a list of
// countries and writes one merged table to storage.
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
	"github.com/Sternrassler/conflict-ingest/pkg/countrycode"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/metrics"
	"github.com/Sternrassler/conflict-ingest/pkg/pipeline"
	"github.com/Sternrassler/conflict-ingest/pkg/worldbank"
)

func main() {
	configPath := flag.String("config", getEnv("CONFIG_FILE", ""), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	cfg.Logging.Service = "worldbank-ingest"
	logger := logging.Setup(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	httpClient, err := res.NewClient("worldbank", nil)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	aliases := make(map[string]string, len(countrycode.DefaultAliases)+len(cfg.WorldBank.Aliases))
	for name, code := range countrycode.DefaultAliases {
		aliases[name] = code
	}
	for name, code := range cfg.WorldBank.Aliases {
		aliases[name] = code
	}

	output, err := app.Output(cfg, cfg.WorldBank.Container)
	if err != nil {
		return err
	}

	fetcher := worldbank.NewFetcher(httpClient, countrycode.New(aliases), cfg.WorldBank.BaseURL, cfg.WorldBank.Indicators)
	p := pipeline.NewIndicators(fetcher, res.Sink, pipeline.IndicatorConfig{
		StartYear: cfg.StartYear,
		EndYear:   cfg.EndYear,
		Output:    output,
	})

	report, err := p.Run(ctx, cfg.WorldBank.Countries)
	for _, c := range report.Skipped() {
		logger.Warn().
			Str("run_id", report.RunID).
			Str("country", c.Name).
			Str("status", string(c.Status)).
			Msg("Country skipped")
	}
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			logger.Warn().Str("run_id", report.RunID).Msg("No data found for any country")
		}
		return err
	}

	logger.Info().
		Str("run_id", report.RunID).
		Int("rows", report.Rows).
		Str("destination", report.Result.Destination.String()).
		Msg("Data successfully saved to storage")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
