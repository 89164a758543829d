// Package testutil provides testing utilities for the ingestion packages.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/conflict-ingest/pkg/ratelimit"
)

// MockResponse defines one canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request seen by MockAPI.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable mock upstream API. Each path serves its queued
// responses in order; the last response repeats once the queue is drained.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.Mutex
	queues   map[string][]MockResponse
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI creates and starts a mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		queues:   make(map[string][]MockResponse),
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, hasHandler := mock.handlers[r.URL.Path]
		resp, hasResp := mock.next(r.URL.Path)
		mock.mu.Unlock()

		if hasHandler {
			handler(w, r)
			return
		}
		if !hasResp {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no mock response configured"}`))
			return
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// next pops the next queued response for path. Caller holds mu.
func (m *MockAPI) next(path string) (MockResponse, bool) {
	queue := m.queues[path]
	if len(queue) == 0 {
		return MockResponse{}, false
	}
	resp := queue[0]
	if len(queue) > 1 {
		m.queues[path] = queue[1:]
	}
	return resp, true
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Enqueue appends responses for path.
func (m *MockAPI) Enqueue(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[path] = append(m.queues[path], responses...)
}

// SetHandler sets a custom handler for a specific path. It takes precedence over queued responses.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// Requests returns a copy of every request received so far.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// JSON creates a 200 OK response with body.
func JSON(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// Status creates an error response with a short JSON body.
func Status(code int) MockResponse {
	return MockResponse{
		StatusCode: code,
		Body:       `{"error":"` + http.StatusText(code) + `"}`,
	}
}

// SleepCall is one call observed by FakeSleeper.
type SleepCall struct {
	Duration time.Duration
	Reason   ratelimit.Reason
}

// FakeSleeper records sleeps without waiting.
type FakeSleeper struct {
	mu    sync.Mutex
	Calls []SleepCall
}

// Sleep implements ratelimit.Sleeper.
func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration, reason ratelimit.Reason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SleepCall{Duration: d, Reason: reason})
	return ctx.Err()
}

// Count returns the number of sleeps with reason.
func (s *FakeSleeper) Count(reason ratelimit.Reason) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Reason == reason {
			n++
		}
	}
	return n
}
