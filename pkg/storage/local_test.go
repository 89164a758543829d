package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSink_PutGet(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocalSink(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("NewLocalSink() error = %v", err)
	}
	ctx := context.Background()

	if err := sink.Put(ctx, "test-data", "raw/events_20240101_120000.parquet", []byte("PAR1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := sink.Get(ctx, "test-data", "raw/events_20240101_120000.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "PAR1" {
		t.Errorf("Get() = %q, want PAR1", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "data", "test-data", "raw", "events_20240101_120000.parquet")); err != nil {
		t.Errorf("expected file on disk: %v", err)
	}
}

func TestLocalSink_Overwrite(t *testing.T) {
	sink, err := NewLocalSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		if err := sink.Put(ctx, "c", "a.csv", []byte(body)); err != nil {
			t.Fatalf("Put(%s) error = %v", body, err)
		}
	}
	got, _ := sink.Get(ctx, "c", "a.csv")
	if string(got) != "second" {
		t.Errorf("Get() = %q, want overwritten value", got)
	}
}

func TestLocalSink_NotFound(t *testing.T) {
	sink, err := NewLocalSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = sink.Get(context.Background(), "reference-data", "gw_codes.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestLocalSink_RejectsInvalidLocations(t *testing.T) {
	sink, err := NewLocalSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		container, path string
	}{
		{"", "a.csv"},
		{"c", ""},
		{"c", "dir/"},
		{"c", "../../escape.csv"},
		{"..", "escape.csv"},
	}
	for _, tt := range tests {
		if err := sink.Put(ctx, tt.container, tt.path, []byte("x")); err == nil {
			t.Errorf("Put(%q, %q) expected error", tt.container, tt.path)
		}
	}
}

func TestNewLocalSink_Errors(t *testing.T) {
	if _, err := NewLocalSink(""); err == nil {
		t.Error("expected error for empty base dir")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLocalSink(file); err == nil {
		t.Error("expected error when base dir is a file")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	sink, err := New(ctx, Config{Type: "LOCAL", BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if sink.Type() != TypeLocal {
		t.Errorf("Type() = %q", sink.Type())
	}
	if err := sink.Put(ctx, "c", "x.json", []byte("{}")); err != nil {
		t.Errorf("instrumented Put() error = %v", err)
	}

	if _, err := New(ctx, Config{Type: "ftp"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := New(ctx, Config{Type: TypeAzure}); err == nil {
		t.Error("expected error for azure without connection string")
	}
	if _, err := New(ctx, Config{Type: TypeS3}); err == nil {
		t.Error("expected error for s3 without endpoint")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"raw/events.parquet": "application/vnd.apache.parquet",
		"out.CSV":            "text/csv",
		"x.json":             "application/json",
		"blob":               "application/octet-stream",
	}
	for in, want := range tests {
		if got := ContentType(in); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", in, got, want)
		}
	}
}
