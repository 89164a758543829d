package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/conflict-ingest/pkg/client"
	"github.com/Sternrassler/conflict-ingest/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_pages_fetched_total",
		Help: "Total number of pages fetched successfully",
	})

	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_records_fetched_total",
		Help: "Total number of records appended to the accumulator",
	})

	backoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_backoffs_total",
		Help: "Total number of HTTP 400 backoffs",
	})

	backoffAlarmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_backoff_alarms_total",
		Help: "Total number of consecutive-backoff alarms raised",
	})
)

// ErrBackoffExhausted is returned when MaxBackoffs consecutive HTTP 400
// responses were received for the same request.
var ErrBackoffExhausted = errors.New("backoff attempts exhausted")

// Page is one decoded response: its records and the link to the next page
// ("" on the last page).
type Page[T any] struct {
	Records []T
	NextURL string
}

// PageFetcher performs one request against a paginated endpoint.
// A nil params means target already embeds its query.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, target string, params url.Values) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, target string, params url.Values) (Page[T], error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, target string, params url.Values) (Page[T], error) {
	return f(ctx, target, params)
}

// State is a paginator state.
type State int

const (
	StateFetching State = iota
	StateBackoff
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateBackoff:
		return "BACKOFF"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds paginator timing and retry configuration.
type Config struct {
	// PacingDelay is slept between two successful page fetches.
	PacingDelay time.Duration `yaml:"pacing_delay"`

	// BackoffDelay is slept after an HTTP 400 before retrying the same request.
	BackoffDelay time.Duration `yaml:"backoff_delay"`

	// MaxBackoffs caps consecutive backoffs for one request. 0 means unbounded.
	MaxBackoffs int `yaml:"max_backoffs"`

	// AlarmEvery raises an error log every N consecutive backoffs. 0 disables it.
	AlarmEvery int `yaml:"alarm_every"`
}

// DefaultConfig returns the default pacing and bounded-with-alarm retry policy.
func DefaultConfig() Config {
	return Config{
		PacingDelay:  ratelimit.DefaultPacingDelay,
		BackoffDelay: ratelimit.DefaultBackoffDelay,
		MaxBackoffs:  60,
		AlarmEvery:   10,
	}
}

// Stats summarizes one FetchAll call.
type Stats struct {
	Pages    int
	Records  int
	Backoffs int
	State    State
}

// Paginator follows next-page links for one entity at a time.
type Paginator[T any] struct {
	fetcher PageFetcher[T]
	sleeper ratelimit.Sleeper
	config  Config
	logger  zerolog.Logger
}

// NewPaginator creates a paginator. A nil sleeper uses ratelimit.ContextSleeper.
func NewPaginator[T any](fetcher PageFetcher[T], sleeper ratelimit.Sleeper, cfg Config, logger zerolog.Logger) *Paginator[T] {
	if sleeper == nil {
		sleeper = ratelimit.ContextSleeper{}
	}
	if cfg.MaxBackoffs < 0 {
		cfg.MaxBackoffs = 0
	}
	if cfg.AlarmEvery < 0 {
		cfg.AlarmEvery = 0
	}
	return &Paginator[T]{
		fetcher: fetcher,
		sleeper: sleeper,
		config:  cfg,
		logger:  logger,
	}
}

// FetchAll fetches target with params, then every linked page, appending all
// records to acc in API order. It returns when a page carries no next link
// (DONE) or on the first non-retryable failure (FAILED). Records appended
// before a failure stay in acc.
func (p *Paginator[T]) FetchAll(ctx context.Context, target string, params url.Values, acc *[]T) (Stats, error) {
	if acc == nil {
		return Stats{State: StateFailed}, fmt.Errorf("accumulator cannot be nil")
	}

	var stats Stats
	state := StateFetching
	consecutiveBackoffs := 0

	for {
		switch state {
		case StateFetching:
			page, err := p.fetcher.FetchPage(ctx, target, params)
			if err != nil {
				if client.IsBadRequest(err) {
					state = StateBackoff
					continue
				}
				p.logger.Error().
					Err(err).
					Str("url", target).
					Str("error_class", string(client.Classify(err))).
					Int("pages", stats.Pages).
					Msg("Page fetch failed")
				stats.State = StateFailed
				return stats, fmt.Errorf("fetch page %d: %w", stats.Pages+1, err)
			}

			consecutiveBackoffs = 0
			*acc = append(*acc, page.Records...)
			stats.Pages++
			stats.Records += len(page.Records)
			pagesFetchedTotal.Inc()
			recordsFetchedTotal.Add(float64(len(page.Records)))

			p.logger.Debug().
				Str("url", target).
				Int("page", stats.Pages).
				Int("records", len(page.Records)).
				Bool("has_next", page.NextURL != "").
				Msg("Page fetched")

			if page.NextURL == "" {
				state = StateDone
				continue
			}

			target, params = page.NextURL, nil
			if err := p.sleeper.Sleep(ctx, p.config.PacingDelay, ratelimit.ReasonPacing); err != nil {
				stats.State = StateFailed
				return stats, fmt.Errorf("pacing sleep: %w", err)
			}

		case StateBackoff:
			consecutiveBackoffs++
			stats.Backoffs++
			backoffsTotal.Inc()

			if p.config.MaxBackoffs > 0 && consecutiveBackoffs > p.config.MaxBackoffs {
				p.logger.Error().
					Str("url", target).
					Int("backoffs", consecutiveBackoffs-1).
					Msg("Giving up after consecutive HTTP 400 responses")
				stats.State = StateFailed
				return stats, fmt.Errorf("%w after %d consecutive HTTP 400 responses for %s",
					ErrBackoffExhausted, p.config.MaxBackoffs, target)
			}

			if p.config.AlarmEvery > 0 && consecutiveBackoffs%p.config.AlarmEvery == 0 {
				backoffAlarmsTotal.Inc()
				p.logger.Error().
					Str("url", target).
					Int("backoffs", consecutiveBackoffs).
					Msg("Request keeps failing with HTTP 400; the query window may be invalid")
			} else {
				p.logger.Warn().
					Str("url", target).
					Int("backoffs", consecutiveBackoffs).
					Dur("delay", p.config.BackoffDelay).
					Msg("HTTP 400, backing off before retrying the same request")
			}

			if err := p.sleeper.Sleep(ctx, p.config.BackoffDelay, ratelimit.ReasonBackoff); err != nil {
				stats.State = StateFailed
				return stats, fmt.Errorf("backoff sleep: %w", err)
			}
			state = StateFetching

		case StateDone:
			stats.State = StateDone
			return stats, nil
		}
	}
}
