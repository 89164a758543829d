// Package client provides the HTTP client used against the public data APIs,
// with a fixed request timeout, error classification and an optional Redis
// response cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/conflict-ingest/pkg/cache"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Total upstream requests by API and status",
	}, []string{"api", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "Upstream request duration in seconds by API",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"api"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept in StatusError.Message.
const maxErrorBody = 512

// Client issues single GET requests and decodes JSON bodies.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// API labels metrics and logs (e.g. "ucdp", "worldbank").
	API string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per request.
	Timeout time.Duration

	// Headers are added to every request (e.g. an access token).
	Headers map[string]string

	// Cache stores successful response bodies. Nil disables caching.
	Cache *cache.Manager
}

// DefaultConfig returns a configuration with the fixed 30s timeout.
func DefaultConfig(api string) Config {
	return Config{
		API:       api,
		UserAgent: "conflict-ingest/1.0",
		Timeout:   DefaultTimeout,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.API == "" {
		return nil, fmt.Errorf("api label is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := logging.NewLogger("http-client").With().Str("api", cfg.API).Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}, nil
}

// BuildURL merges params into target's query string. A nil params leaves
// target untouched, which is how pre-built next-page links are requested.
func BuildURL(target string, params url.Values) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	if params == nil {
		return u.String(), nil
	}

	query := u.Query()
	for key, values := range params {
		query.Del(key)
		for _, v := range values {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Get performs one GET request and returns the response body.
// Non-2xx responses yield *StatusError, failures without a response *TransportError.
func (c *Client) Get(ctx context.Context, target string, params url.Values) ([]byte, error) {
	fullURL, err := BuildURL(target, params)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.CacheKey{URL: fullURL}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("url", fullURL).Msg("Serving response from cache")
			requestsTotal.WithLabelValues(c.config.API, "cache").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("url", fullURL).Msg("Cache get error")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().Str("url", fullURL).Msg("Executing request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(c.config.API).Observe(time.Since(startTime).Seconds())
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(c.config.API, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", fullURL).Msg("HTTP request failed")
		return nil, &TransportError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(c.config.API, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Str("url", fullURL).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")

		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			URL:        fullURL,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{URL: fullURL, Err: fmt.Errorf("read body: %w", err)}
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, cacheKey, body, resp.StatusCode); err != nil {
			c.logger.Warn().Err(err).Str("url", fullURL).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// GetJSON performs one GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, target string, params url.Values, out any) error {
	body, err := c.Get(ctx, target, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		fullURL, _ := BuildURL(target, params)
		return &DecodeError{URL: fullURL, Err: err}
	}
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Timeout returns the effective per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}
