package ged

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/pagination"
	"github.com/rs/zerolog"
)

// API defaults.
const (
	DefaultBaseURL  = "https://ucdpapi.pcr.uu.se/api"
	DefaultVersion  = "25.1"
	DefaultPageSize = 1000

	// AccessTokenHeader carries the UCDP API token.
	AccessTokenHeader = "x-ucdp-access-token"
)

// JSONGetter performs one GET request and decodes the JSON body into out.
// *client.Client implements it.
type JSONGetter interface {
	GetJSON(ctx context.Context, target string, params url.Values, out any) error
}

// Query selects the events of one country over an inclusive year window.
type Query struct {
	// Country is the Gleditsch-Ward country code.
	Country   int
	StartYear int
	EndYear   int
	// PageSize defaults to DefaultPageSize when <= 0.
	PageSize int
}

// Values encodes the query as GED API parameters.
func (q Query) Values() url.Values {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return url.Values{
		"Country":   []string{strconv.Itoa(q.Country)},
		"StartDate": []string{fmt.Sprintf("%04d-01-01", q.StartYear)},
		"EndDate":   []string{fmt.Sprintf("%04d-12-31", q.EndYear)},
		"pagesize":  []string{strconv.Itoa(pageSize)},
	}
}

// pageResponse is the GED API page envelope.
type pageResponse struct {
	TotalCount      int        `json:"TotalCount"`
	TotalPages      int        `json:"TotalPages"`
	PreviousPageURL string     `json:"PreviousPageUrl"`
	NextPageURL     string     `json:"NextPageUrl"`
	Result          []RawEvent `json:"Result"`
}

// Fetcher requests single GED event pages.
type Fetcher struct {
	getter  JSONGetter
	baseURL string
	version string
	logger  zerolog.Logger
}

var _ pagination.PageFetcher[RawEvent] = (*Fetcher)(nil)

// NewFetcher creates a fetcher for {baseURL}/gedevents/{version}.
// Empty baseURL or version fall back to the defaults.
func NewFetcher(getter JSONGetter, baseURL, version string) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Fetcher{
		getter:  getter,
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		logger:  logging.NewLogger("ged-fetcher"),
	}
}

// EventsURL returns the GED events endpoint.
func (f *Fetcher) EventsURL() string {
	return f.baseURL + "/gedevents/" + url.PathEscape(f.version)
}

// FetchPage implements pagination.PageFetcher. Errors from the getter are
// returned unchanged so the paginator can inspect status codes.
func (f *Fetcher) FetchPage(ctx context.Context, target string, params url.Values) (pagination.Page[RawEvent], error) {
	var resp pageResponse
	if err := f.getter.GetJSON(ctx, target, params, &resp); err != nil {
		return pagination.Page[RawEvent]{}, err
	}

	f.logger.Debug().
		Str("url", target).
		Int("records", len(resp.Result)).
		Int("total_count", resp.TotalCount).
		Int("total_pages", resp.TotalPages).
		Msg("GED page decoded")

	return pagination.Page[RawEvent]{
		Records: resp.Result,
		NextURL: strings.TrimSpace(resp.NextPageURL),
	}, nil
}
