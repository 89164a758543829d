package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureSink stores objects as block blobs.
type AzureSink struct {
	client           *azblob.Client
	createContainers bool
}

var _ Sink = (*AzureSink)(nil)

// NewAzureSink connects with cfg.ConnectionString.
func NewAzureSink(cfg Config) (*AzureSink, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("azure storage: connection string is required")
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure storage: create client: %w", err)
	}
	return &AzureSink{client: client, createContainers: cfg.CreateContainers}, nil
}

// Type implements Sink.
func (s *AzureSink) Type() string { return TypeAzure }

// Close implements Sink.
func (s *AzureSink) Close() error { return nil }

// Put implements Sink. Existing blobs are overwritten.
func (s *AzureSink) Put(ctx context.Context, container, objectPath string, data []byte) error {
	if err := validateLocation(container, objectPath); err != nil {
		return err
	}

	err := s.upload(ctx, container, objectPath, data)
	if err != nil && s.createContainers && bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if _, cerr := s.client.CreateContainer(ctx, container, nil); cerr != nil && !bloberror.HasCode(cerr, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("azure storage: create container %q: %w", container, cerr)
		}
		err = s.upload(ctx, container, objectPath, data)
	}
	if err != nil {
		return fmt.Errorf("azure storage: upload %s/%s: %w", container, objectPath, err)
	}
	return nil
}

func (s *AzureSink) upload(ctx context.Context, container, objectPath string, data []byte) error {
	contentType := ContentType(objectPath)
	_, err := s.client.UploadBuffer(ctx, container, objectPath, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	return err
}

// Get implements Sink.
func (s *AzureSink) Get(ctx context.Context, container, objectPath string) ([]byte, error) {
	if err := validateLocation(container, objectPath); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, objectPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, objectPath)
		}
		return nil, fmt.Errorf("azure storage: download %s/%s: %w", container, objectPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure storage: read %s/%s: %w", container, objectPath, err)
	}
	return data, nil
}
