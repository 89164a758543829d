// Package app wires configuration into the clients, sinks and pipelines
// shared by the command-line entry points.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/conflict-ingest/pkg/cache"
	"github.com/Sternrassler/conflict-ingest/pkg/client"
	"github.com/Sternrassler/conflict-ingest/pkg/config"
	"github.com/Sternrassler/conflict-ingest/pkg/export"
	"github.com/Sternrassler/conflict-ingest/pkg/pipeline"
	"github.com/Sternrassler/conflict-ingest/pkg/storage"
)

// Resources holds the long-lived dependencies of one run.
type Resources struct {
	Cache *cache.Manager
	Sink  storage.Sink

	redis *redis.Client
}

// Open connects the optional Redis cache and the storage sink.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Resources, error) {
	res := &Resources{}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			// Plain host:port.
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		res.redis = rdb
		res.Cache = cache.NewManager(rdb, cfg.CacheTTL)
		logger.Info().Str("addr", opts.Addr).Dur("ttl", res.Cache.TTL()).Msg("Response cache enabled")
	}

	sink, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	res.Sink = sink
	logger.Info().Str("backend", sink.Type()).Msg("Storage sink ready")

	return res, nil
}

// Close releases every opened resource.
func (r *Resources) Close() error {
	var firstErr error
	if r.Sink != nil {
		if err := r.Sink.Close(); err != nil {
			firstErr = err
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewClient creates an HTTP client for api sharing the response cache.
func (r *Resources) NewClient(api string, headers map[string]string) (*client.Client, error) {
	cfg := client.DefaultConfig(api)
	cfg.Headers = headers
	cfg.Cache = r.Cache
	return client.New(cfg)
}

// Output converts the configured output settings for a container.
func Output(cfg config.Config, container string) (pipeline.OutputConfig, error) {
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return pipeline.OutputConfig{}, err
	}
	codec, err := export.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return pipeline.OutputConfig{}, err
	}
	return pipeline.OutputConfig{Container: container, Format: format, Compression: codec}, nil
}
