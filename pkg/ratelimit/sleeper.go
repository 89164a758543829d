// Package ratelimit implements the two suspension points used to stay within
// upstream API limits: a fixed pacing delay between successive pages and a
// fixed backoff delay after a rejected request.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for sleeps.
var (
	sleepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_sleeps_total",
		Help: "Total number of pacing/backoff sleeps by reason",
	}, []string{"reason"})

	sleepSecondsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_sleep_seconds_total",
		Help: "Total time spent sleeping by reason",
	}, []string{"reason"})
)

// Reason labels why a sleep happens.
type Reason string

const (
	// ReasonPacing is the delay between two successful page fetches.
	ReasonPacing Reason = "pacing"

	// ReasonBackoff is the delay after an HTTP 400 before retrying the same request.
	ReasonBackoff Reason = "backoff"
)

// Default delays.
const (
	DefaultPacingDelay  = 1 * time.Second
	DefaultBackoffDelay = 5 * time.Second
)

// Sleeper suspends the caller for d.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration, reason Reason) error
}

// ContextSleeper sleeps on a timer and returns early with ctx.Err() when ctx is done.
type ContextSleeper struct{}

// Sleep implements Sleeper.
func (ContextSleeper) Sleep(ctx context.Context, d time.Duration, reason Reason) error {
	sleepsTotal.WithLabelValues(string(reason)).Inc()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	start := time.Now()
	select {
	case <-ctx.Done():
		sleepSecondsTotal.WithLabelValues(string(reason)).Add(time.Since(start).Seconds())
		return ctx.Err()
	case <-timer.C:
		sleepSecondsTotal.WithLabelValues(string(reason)).Add(d.Seconds())
		return nil
	}
}
