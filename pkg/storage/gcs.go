package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSink stores objects in Google Cloud Storage.
type GCSSink struct {
	client *gcs.Client
}

var _ Sink = (*GCSSink)(nil)

// NewGCSSink creates a client from cfg.CredentialsFile, or application
// default credentials when empty. cfg.GCSEndpoint targets an emulator
// without authentication.
func NewGCSSink(ctx context.Context, cfg Config) (*GCSSink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.GCSEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GCSEndpoint), option.WithoutAuthentication())
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: create client: %w", err)
	}
	return &GCSSink{client: client}, nil
}

// Type implements Sink.
func (s *GCSSink) Type() string { return TypeGCS }

// Close implements Sink.
func (s *GCSSink) Close() error { return s.client.Close() }

// Put implements Sink.
func (s *GCSSink) Put(ctx context.Context, bucket, objectPath string, data []byte) error {
	if err := validateLocation(bucket, objectPath); err != nil {
		return err
	}

	w := s.client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = ContentType(objectPath)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs storage: write %s/%s: %w", bucket, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs storage: finalize %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Get implements Sink.
func (s *GCSSink) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	if err := validateLocation(bucket, objectPath); err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, objectPath)
		}
		return nil, fmt.Errorf("gcs storage: open %s/%s: %w", bucket, objectPath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: read %s/%s: %w", bucket, objectPath, err)
	}
	return data, nil
}
