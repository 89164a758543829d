// Package pipeline orchestrates ingestion runs: fetch every entity, then
// transform, then persist. Runs are strictly sequential and nothing is
// written until every entity has been retrieved.
package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/Sternrassler/conflict-ingest/pkg/export"
)

// ErrNoRecords is returned when a run retrieved nothing to persist.
var ErrNoRecords = errors.New("no records retrieved")

var (
	entitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_entities_total",
		Help: "Entities processed by pipeline and outcome",
	}, []string{"pipeline", "status"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Pipeline runs by outcome",
	}, []string{"pipeline", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_run_duration_seconds",
		Help:    "Pipeline run duration",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"pipeline"})

	rowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_written_total",
		Help: "Rows handed to storage by dataset",
	}, []string{"dataset"})
)

// OutputConfig selects how datasets are encoded and where they go.
type OutputConfig struct {
	Container   string
	Format      export.Format
	Compression parquet.CompressionCodec
}

func (o OutputConfig) withDefaults(container string) OutputConfig {
	if o.Container == "" {
		o.Container = container
	}
	if o.Format == "" {
		o.Format = export.FormatParquet
	}
	return o
}

func newRunID() string {
	return uuid.NewString()
}

func finishRun(pipeline string, start time.Time, err error) {
	runDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "failure"
	}
	runsTotal.WithLabelValues(pipeline, status).Inc()
}
