// Package metrics provides the Prometheus registry and HTTP handler shared by
// the ingestion binaries. Individual metrics are defined in their respective
// packages (client, cache, pagination, storage, pipeline) via promauto to
// keep packages independent.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler returns the HTTP handler exposing the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the endpoint and returns nil immediately.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ingest_requests_total{api, status} (Counter): upstream requests by API and HTTP status
//   - ingest_request_duration_seconds{api} (Histogram): upstream request duration
//   - ingest_errors_total{class} (Counter): errors by class (client, server, rate_limit, network, decode)
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total (Counter): upstream responses served from Redis
//   - ingest_cache_misses_total (Counter)
//   - ingest_cache_errors_total{operation} (Counter)
//
// Pagination Metrics (pkg/pagination):
//   - ingest_pages_fetched_total (Counter)
//   - ingest_records_fetched_total (Counter)
//   - ingest_backoffs_total (Counter): HTTP 400 backoffs
//   - ingest_backoff_alarms_total (Counter): consecutive-backoff alarms
//
// Sleep Metrics (pkg/ratelimit):
//   - ingest_sleeps_total{reason} (Counter): pacing and backoff sleeps
//   - ingest_sleep_seconds_total{reason} (Counter): time spent pacing/backing off
//
// World Bank Metrics (pkg/worldbank):
//   - ingest_worldbank_countries_total{status} (Counter): fetched, no_data, unconvertible
//   - ingest_worldbank_indicator_failures_total{indicator, error_class} (Counter)
//
// Storage Metrics (pkg/storage):
//   - ingest_storage_operations_total{backend, operation, status} (Counter)
//   - ingest_storage_bytes_written_total{backend} (Counter)
//   - ingest_storage_operation_duration_seconds{backend, operation} (Histogram)
//
// Pipeline Metrics (pkg/pipeline):
//   - ingest_entities_total{pipeline, status} (Counter)
//   - ingest_runs_total{pipeline, status} (Counter)
//   - ingest_run_duration_seconds{pipeline} (Histogram)
//   - ingest_rows_written_total{dataset} (Counter)
//
// Example Prometheus Queries:
//
//	# Backoff rate
//	rate(ingest_backoffs_total[5m])
//
//	# Upstream error rate by class
//	sum by (class) (rate(ingest_errors_total[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(ingest_request_duration_seconds_bucket[5m]))
