package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Sink stores objects in an S3-compatible service (AWS S3, MinIO).
type S3Sink struct {
	client           *minio.Client
	region           string
	createContainers bool

	mu      sync.Mutex
	buckets map[string]bool
}

var _ Sink = (*S3Sink)(nil)

// NewS3Sink connects to cfg.Endpoint with static credentials.
func NewS3Sink(ctx context.Context, cfg Config) (*S3Sink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 storage: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage: create client: %w", err)
	}
	return &S3Sink{
		client:           client,
		region:           cfg.Region,
		createContainers: cfg.CreateContainers,
		buckets:          make(map[string]bool),
	}, nil
}

// Type implements Sink.
func (s *S3Sink) Type() string { return TypeS3 }

// Close implements Sink.
func (s *S3Sink) Close() error { return nil }

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, bucket, objectPath string, data []byte) error {
	if err := validateLocation(bucket, objectPath); err != nil {
		return err
	}
	if s.createContainers {
		if err := s.ensureBucket(ctx, bucket); err != nil {
			return err
		}
	}

	_, err := s.client.PutObject(ctx, bucket, objectPath, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(objectPath),
	})
	if err != nil {
		return fmt.Errorf("s3 storage: put %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Get implements Sink.
func (s *S3Sink) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	if err := validateLocation(bucket, objectPath); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readError(bucket, objectPath, err)
	}
	defer obj.Close()

	// GetObject is lazy; missing objects surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(bucket, objectPath, err)
	}
	return data, nil
}

func (s *S3Sink) readError(bucket, objectPath string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, objectPath)
	}
	return fmt.Errorf("s3 storage: get %s/%s: %w", bucket, objectPath, err)
}

func (s *S3Sink) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("s3 storage: check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("s3 storage: create bucket %q: %w", bucket, err)
		}
	}
	s.buckets[bucket] = true
	return nil
}
