// Package refdata loads reference tables used to seed an ingestion run.
package refdata

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Default location of the Gleditsch-Ward code table.
const (
	DefaultContainer = "reference-data"
	DefaultObject    = "gw_codes.csv"
	DefaultColumn    = "StateNum"
)

// ErrColumnNotFound is returned when the requested column is missing from the header.
var ErrColumnNotFound = errors.New("column not found")

// ObjectReader reads one stored object. storage.Sink implements it.
type ObjectReader interface {
	Get(ctx context.Context, container, path string) ([]byte, error)
}

// ParseCodes reads the integer column named column from CSV data. Blank
// cells are skipped; the result keeps file order and drops duplicates.
func ParseCodes(r io.Reader, column string) ([]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}

	var codes []int
	seen := make(map[int]bool)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if idx >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[idx])
		if cell == "" {
			continue
		}
		code, err := strconv.Atoi(cell)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, column, cell, err)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// LoadCodes fetches container/path and parses column from it.
func LoadCodes(ctx context.Context, src ObjectReader, container, path, column string) ([]int, error) {
	data, err := src.Get(ctx, container, path)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", container, path, err)
	}
	codes, err := ParseCodes(bytes.NewReader(data), column)
	if err != nil {
		return nil, fmt.Errorf("parse %s/%s: %w", container, path, err)
	}
	return codes, nil
}
