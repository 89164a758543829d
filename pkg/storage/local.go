package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink stores objects as files under BaseDir/container/path.
type LocalSink struct {
	baseDir string
}

var _ Sink = (*LocalSink)(nil)

// NewLocalSink creates baseDir if needed.
func NewLocalSink(baseDir string) (*LocalSink, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local storage: base_dir must be specified")
	}
	info, err := os.Stat(baseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage: create base_dir %q: %w", baseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage: stat base_dir %q: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage: base_dir %q is not a directory", baseDir)
	}
	return &LocalSink{baseDir: baseDir}, nil
}

// Type implements Sink.
func (s *LocalSink) Type() string { return TypeLocal }

// Close implements Sink.
func (s *LocalSink) Close() error { return nil }

// Put implements Sink.
func (s *LocalSink) Put(ctx context.Context, container, objectPath string, data []byte) error {
	fullPath, err := s.resolve(container, objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", fullPath, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", fullPath, err)
	}
	return nil
}

// Get implements Sink.
func (s *LocalSink) Get(ctx context.Context, container, objectPath string) ([]byte, error) {
	fullPath, err := s.resolve(container, objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, objectPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", fullPath, err)
	}
	return data, nil
}

// resolve maps container/path to a file and rejects paths escaping baseDir.
func (s *LocalSink) resolve(container, objectPath string) (string, error) {
	if err := validateLocation(container, objectPath); err != nil {
		return "", err
	}
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base_dir: %w", err)
	}
	fullPath := filepath.Join(base, container, filepath.FromSlash(objectPath))
	if !strings.HasPrefix(fullPath, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base_dir", objectPath)
	}
	return fullPath, nil
}
