// Package ged ingests UCDP Georeferenced Event Dataset (GED) records.
//
// The package covers the conflict-event path end to end:
//
//   - Fetcher issues one GED API request and decodes a page of RawEvent
//     records plus the NextPageUrl cursor. It implements
//     pagination.PageFetcher so a pagination.Paginator can drive it.
//   - Normalize repairs heterogeneous raw fields into NormalizedRow values
//     (dates parsed or marked invalid, counts coerced to non-negative
//     integers). It never drops a row.
//   - Aggregate groups normalized rows by (country_id, country, year) and
//     derives the ged_* summary columns.
//
// Example:
//
//	fetcher := ged.NewFetcher(httpClient, ged.DefaultBaseURL, ged.DefaultVersion)
//	p := pagination.NewPaginator[ged.RawEvent](fetcher, nil, pagination.DefaultConfig(), logger)
//
//	var events []ged.RawEvent
//	for _, code := range codes {
//	    q := ged.Query{Country: code, StartYear: 1989, EndYear: 1991}
//	    if _, err := p.FetchAll(ctx, fetcher.EventsURL(), q.Values(), &events); err != nil {
//	        return err
//	    }
//	}
//
//	rows := ged.Normalize(events)
//	summary := ged.Aggregate(rows)
package ged
