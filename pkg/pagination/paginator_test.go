package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/Sternrassler/conflict-ingest/internal/testutil"
	"github.com/Sternrassler/conflict-ingest/pkg/client"
	"github.com/Sternrassler/conflict-ingest/pkg/ratelimit"
	"github.com/rs/zerolog"
)

type call struct {
	target string
	params url.Values
}

type step struct {
	page Page[int]
	err  error
}

// scriptedFetcher replays steps in order and records every call.
type scriptedFetcher struct {
	steps []step
	calls []call
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, target string, params url.Values) (Page[int], error) {
	f.calls = append(f.calls, call{target: target, params: params})
	if len(f.calls) > len(f.steps) {
		return Page[int]{}, fmt.Errorf("unexpected call %d", len(f.calls))
	}
	s := f.steps[len(f.calls)-1]
	return s.page, s.err
}

func seq(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func badRequest() error {
	return &client.StatusError{StatusCode: 400, ErrorClass: client.ErrorClassClient}
}

func newTestPaginator(f PageFetcher[int], s ratelimit.Sleeper, cfg Config) *Paginator[int] {
	return NewPaginator[int](f, s, cfg, zerolog.Nop())
}

func TestFetchAll_ThreePages(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{page: Page[int]{Records: seq(0, 1000), NextURL: "http://api.test/ged?page=2"}},
		{page: Page[int]{Records: seq(1000, 1000), NextURL: "http://api.test/ged?page=3"}},
		{page: Page[int]{Records: seq(2000, 400)}},
	}}
	sleeper := &testutil.FakeSleeper{}
	p := newTestPaginator(fetcher, sleeper, DefaultConfig())

	var acc []int
	params := url.Values{"Country": []string{"645"}}
	stats, err := p.FetchAll(context.Background(), "http://api.test/ged", params, &acc)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(acc) != 2400 {
		t.Errorf("accumulator holds %d records, want 2400", len(acc))
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("fetch calls = %d, want 3", len(fetcher.calls))
	}
	if stats.State != StateDone || stats.Pages != 3 || stats.Records != 2400 {
		t.Errorf("stats = %+v", stats)
	}
	for i, v := range acc {
		if v != i {
			t.Fatalf("acc[%d] = %d, records out of API order", i, v)
		}
	}

	// First request carries params, follow-ups use the link verbatim.
	if fetcher.calls[0].params.Get("Country") != "645" {
		t.Errorf("first call params = %v", fetcher.calls[0].params)
	}
	for i, c := range fetcher.calls[1:] {
		if c.params != nil {
			t.Errorf("call %d params = %v, want nil", i+2, c.params)
		}
	}
	if fetcher.calls[2].target != "http://api.test/ged?page=3" {
		t.Errorf("third call target = %q", fetcher.calls[2].target)
	}

	// Pacing only between pages: 3 pages -> 2 sleeps.
	if got := sleeper.Count(ratelimit.ReasonPacing); got != 2 {
		t.Errorf("pacing sleeps = %d, want 2", got)
	}
	if got := sleeper.Count(ratelimit.ReasonBackoff); got != 0 {
		t.Errorf("backoff sleeps = %d, want 0", got)
	}
}

func TestFetchAll_BackoffThenSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{page: Page[int]{Records: seq(0, 3), NextURL: "http://api.test/ged?page=2"}},
		{err: badRequest()},
		{page: Page[int]{Records: seq(3, 2)}},
	}}
	sleeper := &testutil.FakeSleeper{}
	cfg := DefaultConfig()
	p := newTestPaginator(fetcher, sleeper, cfg)

	var acc []int
	stats, err := p.FetchAll(context.Background(), "http://api.test/ged", url.Values{}, &acc)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if got := sleeper.Count(ratelimit.ReasonBackoff); got != 1 {
		t.Errorf("backoff sleeps = %d, want 1", got)
	}
	if fmt.Sprint(acc) != fmt.Sprint(seq(0, 5)) {
		t.Errorf("acc = %v, want no loss or duplication", acc)
	}
	if stats.Backoffs != 1 || stats.State != StateDone {
		t.Errorf("stats = %+v", stats)
	}

	// The retry repeats the exact request that got the 400.
	if fetcher.calls[1].target != fetcher.calls[2].target {
		t.Errorf("retry target %q differs from rejected %q", fetcher.calls[2].target, fetcher.calls[1].target)
	}

	for _, c := range sleeper.Calls {
		if c.Reason == ratelimit.ReasonBackoff && c.Duration != cfg.BackoffDelay {
			t.Errorf("backoff duration = %v, want %v", c.Duration, cfg.BackoffDelay)
		}
	}
}

func TestFetchAll_BackoffRetriesSameParams(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{err: badRequest()},
		{page: Page[int]{Records: seq(0, 1)}},
	}}
	p := newTestPaginator(fetcher, &testutil.FakeSleeper{}, DefaultConfig())

	var acc []int
	params := url.Values{"StartDate": []string{"1989-01-01"}}
	if _, err := p.FetchAll(context.Background(), "http://api.test/ged", params, &acc); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if fetcher.calls[1].params.Get("StartDate") != "1989-01-01" {
		t.Errorf("retry params = %v, want original params", fetcher.calls[1].params)
	}
}

func TestFetchAll_NonRetryableFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", &client.StatusError{StatusCode: 404, ErrorClass: client.ErrorClassClient}},
		{"unauthorized", &client.StatusError{StatusCode: 401, ErrorClass: client.ErrorClassClient}},
		{"server error", &client.StatusError{StatusCode: 503, ErrorClass: client.ErrorClassServer}},
		{"transport", &client.TransportError{URL: "http://api.test", Err: errors.New("connection reset")}},
		{"decode", &client.DecodeError{URL: "http://api.test", Err: errors.New("unexpected EOF")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{steps: []step{
				{page: Page[int]{Records: seq(0, 2), NextURL: "http://api.test/ged?page=2"}},
				{err: tt.err},
			}}
			sleeper := &testutil.FakeSleeper{}
			p := newTestPaginator(fetcher, sleeper, DefaultConfig())

			var acc []int
			stats, err := p.FetchAll(context.Background(), "http://api.test/ged", nil, &acc)
			if !errors.Is(err, tt.err) {
				t.Fatalf("FetchAll() error = %v, want wrapping %v", err, tt.err)
			}
			if stats.State != StateFailed {
				t.Errorf("state = %v, want FAILED", stats.State)
			}
			if len(fetcher.calls) != 2 {
				t.Errorf("fetch calls = %d, want 2 (no retry)", len(fetcher.calls))
			}
			if sleeper.Count(ratelimit.ReasonBackoff) != 0 {
				t.Error("non-400 failures must not back off")
			}
			if len(acc) != 2 {
				t.Errorf("acc len = %d, want records from page 1 kept", len(acc))
			}
		})
	}
}

func TestFetchAll_BackoffCap(t *testing.T) {
	steps := make([]step, 4)
	for i := range steps {
		steps[i] = step{err: badRequest()}
	}
	fetcher := &scriptedFetcher{steps: steps}
	sleeper := &testutil.FakeSleeper{}
	cfg := DefaultConfig()
	cfg.MaxBackoffs = 3
	p := newTestPaginator(fetcher, sleeper, cfg)

	var acc []int
	stats, err := p.FetchAll(context.Background(), "http://api.test/ged", nil, &acc)
	if !errors.Is(err, ErrBackoffExhausted) {
		t.Fatalf("FetchAll() error = %v, want ErrBackoffExhausted", err)
	}
	if len(fetcher.calls) != 4 {
		t.Errorf("fetch calls = %d, want 4 (1 + 3 retries)", len(fetcher.calls))
	}
	if got := sleeper.Count(ratelimit.ReasonBackoff); got != 3 {
		t.Errorf("backoff sleeps = %d, want 3", got)
	}
	if stats.State != StateFailed {
		t.Errorf("state = %v, want FAILED", stats.State)
	}
}

func TestFetchAll_UnboundedRetries(t *testing.T) {
	steps := make([]step, 0, 151)
	for i := 0; i < 150; i++ {
		steps = append(steps, step{err: badRequest()})
	}
	steps = append(steps, step{page: Page[int]{Records: seq(0, 1)}})
	fetcher := &scriptedFetcher{steps: steps}
	sleeper := &testutil.FakeSleeper{}
	cfg := DefaultConfig()
	cfg.MaxBackoffs = 0
	p := newTestPaginator(fetcher, sleeper, cfg)

	var acc []int
	stats, err := p.FetchAll(context.Background(), "http://api.test/ged", nil, &acc)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if stats.Backoffs != 150 || len(acc) != 1 {
		t.Errorf("stats = %+v, acc = %v", stats, acc)
	}
}

func TestFetchAll_BackoffCounterResetsAfterSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{err: badRequest()},
		{err: badRequest()},
		{page: Page[int]{Records: seq(0, 1), NextURL: "http://api.test/ged?page=2"}},
		{err: badRequest()},
		{err: badRequest()},
		{page: Page[int]{Records: seq(1, 1)}},
	}}
	cfg := DefaultConfig()
	cfg.MaxBackoffs = 2
	p := newTestPaginator(fetcher, &testutil.FakeSleeper{}, cfg)

	var acc []int
	stats, err := p.FetchAll(context.Background(), "http://api.test/ged", nil, &acc)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if stats.Backoffs != 4 || len(acc) != 2 {
		t.Errorf("stats = %+v, acc = %v", stats, acc)
	}
}

func TestFetchAll_SharedAccumulatorAcrossEntities(t *testing.T) {
	pages := map[string][]int{
		"645": seq(0, 3),
		"700": seq(3, 2),
	}
	fetcher := PageFetcherFunc[int](func(ctx context.Context, target string, params url.Values) (Page[int], error) {
		return Page[int]{Records: pages[params.Get("Country")]}, nil
	})
	p := newTestPaginator(fetcher, &testutil.FakeSleeper{}, DefaultConfig())

	var acc []int
	for _, code := range []string{"645", "700"} {
		if _, err := p.FetchAll(context.Background(), "http://api.test/ged", url.Values{"Country": []string{code}}, &acc); err != nil {
			t.Fatalf("FetchAll(%s) error = %v", code, err)
		}
	}

	if fmt.Sprint(acc) != fmt.Sprint(seq(0, 5)) {
		t.Errorf("acc = %v, want entities appended in caller order", acc)
	}
}

func TestFetchAll_NilAccumulator(t *testing.T) {
	p := newTestPaginator(&scriptedFetcher{}, &testutil.FakeSleeper{}, DefaultConfig())
	if _, err := p.FetchAll(context.Background(), "http://api.test", nil, nil); err == nil {
		t.Error("expected error for nil accumulator")
	}
}

func TestFetchAll_CancelledDuringBackoff(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{err: badRequest()}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newTestPaginator(fetcher, &testutil.FakeSleeper{}, DefaultConfig())

	var acc []int
	stats, err := p.FetchAll(ctx, "http://api.test", nil, &acc)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() error = %v, want context.Canceled", err)
	}
	if stats.State != StateFailed {
		t.Errorf("state = %v, want FAILED", stats.State)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateFetching: "FETCHING",
		StateBackoff:  "BACKOFF",
		StateDone:     "DONE",
		StateFailed:   "FAILED",
		State(9):      "State(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
