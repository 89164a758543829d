package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key this package writes to Redis.
const KeyPrefix = "ingest"

// CacheKey identifies a cached upstream response.
type CacheKey struct {
	// URL is the request URL. Any query string it already carries is folded
	// into the key together with QueryParams.
	URL string

	// QueryParams are additional query parameters sent with the request.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: ingest:host/path:param1=val1:param2=val2
//
// Example:
//
//	ingest:ucdpapi.pcr.uu.se/api/gedevents/25.1:Country=645:pagesize=1000
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	query := url.Values{}
	resource := k.URL
	if u, err := url.Parse(k.URL); err == nil {
		resource = u.Host + "/" + strings.Trim(u.Path, "/")
		for key, values := range u.Query() {
			query[key] = append(query[key], values...)
		}
	}
	for key, values := range k.QueryParams {
		query[key] = append(query[key], values...)
	}

	resource = strings.Trim(resource, "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	// Sorted for determinism; NextPageUrl links and explicit params can
	// describe the same request with a different parameter order.
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
