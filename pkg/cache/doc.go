// Package cache stores upstream API responses in Redis so that re-running an
// ingestion against the same query window does not hit the public APIs again.
//
// Only successful (2xx) bodies are cached. Entries expire after the manager
// TTL; Redis removes the key at the same time.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.CacheKey{
//		URL:         "https://ucdpapi.pcr.uu.se/api/gedevents/25.1",
//		QueryParams: url.Values{"Country": []string{"645"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch upstream, then manager.Put(ctx, key, body, 200)
//	}
//
// A URL that already embeds its query string (a NextPageUrl link) and the
// same URL with explicit parameters map to the same key.
//
// # Metrics
//
//   - ingest_cache_hits_total
//   - ingest_cache_misses_total
//   - ingest_cache_errors_total{operation}
package cache
