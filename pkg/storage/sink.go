// Package storage provides the object-storage sink that ingestion runs read
// reference data from and write datasets to.
//
// Every backend addresses objects by container (Azure container, S3 or GCS
// bucket, local directory) and a slash-separated path. Writes overwrite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Backend types.
const (
	TypeAzure = "azure"
	TypeS3    = "s3"
	TypeGCS   = "gcs"
	TypeLocal = "local"
)

// ErrNotFound is returned by Get when the object or its container does not exist.
var ErrNotFound = errors.New("object not found")

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_storage_operations_total",
		Help: "Storage operations by backend, operation and outcome",
	}, []string{"backend", "operation", "status"})

	bytesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_storage_bytes_written_total",
		Help: "Bytes written to storage by backend",
	}, []string{"backend"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_storage_operation_duration_seconds",
		Help:    "Storage operation duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation"})
)

// Sink stores and retrieves whole objects.
type Sink interface {
	Put(ctx context.Context, container, path string, data []byte) error
	Get(ctx context.Context, container, path string) ([]byte, error)
	Type() string
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Type string `yaml:"type"`

	// Azure
	ConnectionString string `yaml:"connection_string"`

	// S3-compatible
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`

	// GCS
	CredentialsFile string `yaml:"credentials_file"`
	GCSEndpoint     string `yaml:"gcs_endpoint"`

	// Local
	BaseDir string `yaml:"base_dir"`

	// CreateContainers creates missing containers/buckets on first write.
	CreateContainers bool `yaml:"create_containers"`
}

// New creates the configured backend wrapped with metrics and logging.
func New(ctx context.Context, cfg Config) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch strings.ToLower(cfg.Type) {
	case TypeAzure:
		sink, err = NewAzureSink(cfg)
	case TypeS3:
		sink, err = NewS3Sink(ctx, cfg)
	case TypeGCS:
		sink, err = NewGCSSink(ctx, cfg)
	case TypeLocal:
		sink, err = NewLocalSink(cfg.BaseDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(sink), nil
}

// Instrument wraps sink with metrics and debug logging.
func Instrument(sink Sink) Sink {
	return &instrumented{Sink: sink}
}

type instrumented struct {
	Sink
}

func (s *instrumented) Put(ctx context.Context, container, objectPath string, data []byte) error {
	start := time.Now()
	err := s.Sink.Put(ctx, container, objectPath, data)
	s.observe("put", start, err)
	if err == nil {
		bytesWrittenTotal.WithLabelValues(s.Type()).Add(float64(len(data)))
		log.Debug().
			Str("backend", s.Type()).
			Str("container", container).
			Str("path", objectPath).
			Int("bytes", len(data)).
			Msg("Object written")
	}
	return err
}

func (s *instrumented) Get(ctx context.Context, container, objectPath string) ([]byte, error) {
	start := time.Now()
	data, err := s.Sink.Get(ctx, container, objectPath)
	s.observe("get", start, err)
	return data, err
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(s.Type(), op).Observe(time.Since(start).Seconds())
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	operationsTotal.WithLabelValues(s.Type(), op, status).Inc()
}

// ContentType guesses a MIME type from the object path.
func ContentType(objectPath string) string {
	switch strings.ToLower(path.Ext(objectPath)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func validateLocation(container, objectPath string) error {
	if container == "" {
		return fmt.Errorf("container is required")
	}
	if objectPath == "" || strings.HasSuffix(objectPath, "/") {
		return fmt.Errorf("invalid object path %q", objectPath)
	}
	return nil
}
