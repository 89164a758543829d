// Package export encodes row tables and hands them to a storage sink.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/Sternrassler/conflict-ingest/pkg/storage"
)

// Format is an output encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// TimestampLayout is embedded in dataset paths.
const TimestampLayout = "20060102_150405"

// parquetParallelism is the number of goroutines parquet-go uses to marshal rows.
const parquetParallelism = 4

// ParseFormat parses a format name; empty means parquet.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Record is a row that can be written as CSV.
type Record interface {
	CSVHeader() []string
	CSVValues() []string
}

// ParseCompression maps a codec name to its parquet codec. Empty means SNAPPY.
func ParseCompression(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported parquet compression %q", name)
	}
}

// EncodeParquet writes rows as one parquet file. T must be a struct with
// parquet tags; its schema is taken from a zero value.
func EncodeParquet[T any](rows []T, codec parquet.CompressionCodec) ([]byte, error) {
	buf := new(bytes.Buffer)

	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for i, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeParquetJSON writes rows, each one JSON object, as one parquet file
// with the given parquet-go JSON schema. Keys missing from a row are null.
func EncodeParquetJSON(schema string, rows []string, codec parquet.CompressionCodec) ([]byte, error) {
	buf := new(bytes.Buffer)

	pw, err := writer.NewJSONWriterFromWriter(schema, buf, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for i, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCSV writes a header line followed by one line per row.
func EncodeCSV[T Record](rows []T) ([]byte, error) {
	var zero T
	values := make([][]string, len(rows))
	for i, row := range rows {
		values[i] = row.CSVValues()
	}
	return encodeCSV(zero.CSVHeader(), values)
}

func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Table is a dataset whose columns are only known at run time.
type Table interface {
	Len() int
	CSVHeader() []string
	CSVRows() [][]string
	ParquetSchema() (string, error)
	ParquetRows() ([]string, error)
}

// EncodeTable encodes a run-time table in format.
func EncodeTable(format Format, t Table, codec parquet.CompressionCodec) ([]byte, error) {
	switch format {
	case FormatParquet:
		schema, err := t.ParquetSchema()
		if err != nil {
			return nil, fmt.Errorf("build parquet schema: %w", err)
		}
		rows, err := t.ParquetRows()
		if err != nil {
			return nil, fmt.Errorf("build parquet rows: %w", err)
		}
		return EncodeParquetJSON(schema, rows, codec)
	case FormatCSV:
		return encodeCSV(t.CSVHeader(), t.CSVRows())
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Encode dispatches on format.
func Encode[T Record](format Format, rows []T, codec parquet.CompressionCodec) ([]byte, error) {
	switch format {
	case FormatParquet:
		return EncodeParquet(rows, codec)
	case FormatCSV:
		return EncodeCSV(rows)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// TimestampedPath builds prefix/name_YYYYMMDD_HHMMSS.ext.
func TimestampedPath(prefix, name string, at time.Time, format Format) string {
	return fmt.Sprintf("%s/%s_%s%s", strings.TrimRight(prefix, "/"), name, at.Format(TimestampLayout), format.Ext())
}

// Destination is where one dataset is written.
type Destination struct {
	Container string
	Path      string
}

func (d Destination) String() string {
	return d.Container + "/" + d.Path
}

// Result reports the outcome for one destination.
type Result struct {
	Destination Destination
	Bytes       int
	Rows        int
	OK          bool
	Err         error
}

// Writer persists encoded datasets. A failing write is reported in its
// Result and never panics or aborts other writes.
type Writer struct {
	sink   storage.Sink
	logger zerolog.Logger
}

// NewWriter creates a writer on sink.
func NewWriter(sink storage.Sink, logger zerolog.Logger) *Writer {
	return &Writer{sink: sink, logger: logger}
}

// Write stores data at dest.
func (w *Writer) Write(ctx context.Context, dest Destination, data []byte, rows int) Result {
	res := Result{Destination: dest, Bytes: len(data), Rows: rows}
	if err := w.sink.Put(ctx, dest.Container, dest.Path, data); err != nil {
		res.Err = err
		w.logger.Error().
			Err(err).
			Str("destination", dest.String()).
			Msg("Failed to write dataset")
		return res
	}

	res.OK = true
	w.logger.Info().
		Str("destination", dest.String()).
		Int("rows", rows).
		Int("bytes", len(data)).
		Msg("Dataset written")
	return res
}

// WriteTable encodes rows and stores them at dest. Encoding failures are
// reported like write failures.
func WriteTable[T Record](ctx context.Context, w *Writer, dest Destination, format Format, codec parquet.CompressionCodec, rows []T) Result {
	data, err := Encode(format, rows, codec)
	if err != nil {
		w.logger.Error().Err(err).Str("destination", dest.String()).Msg("Failed to encode dataset")
		return Result{Destination: dest, Rows: len(rows), Err: err}
	}
	return w.Write(ctx, dest, data, len(rows))
}

// WriteDynamic encodes t and stores it at dest.
func WriteDynamic(ctx context.Context, w *Writer, dest Destination, format Format, codec parquet.CompressionCodec, t Table) Result {
	data, err := EncodeTable(format, t, codec)
	if err != nil {
		w.logger.Error().Err(err).Str("destination", dest.String()).Msg("Failed to encode dataset")
		return Result{Destination: dest, Rows: t.Len(), Err: err}
	}
	return w.Write(ctx, dest, data, t.Len())
}

// Errors combines the failures among results, or returns nil.
func Errors(results []Result) error {
	var merr *multierror.Error
	for _, r := range results {
		if !r.OK {
			err := r.Err
			if err == nil {
				err = fmt.Errorf("write failed")
			}
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.Destination, err))
		}
	}
	return merr.ErrorOrNil()
}
