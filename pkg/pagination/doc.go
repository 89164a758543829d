// Package pagination drives a cursor-paginated API to exhaustion.
//
// The upstream returns a page of records plus an optional link to the next
// page; the link already embeds every query parameter. A Paginator follows
// those links for one entity and appends every record, in API order, to an
// accumulator owned by the caller so several entities can share it.
//
// Per entity the paginator is a small state machine:
//
//	FETCHING --records, next link--> (pace) FETCHING
//	FETCHING --records, no link----> DONE
//	FETCHING --HTTP 400------------> BACKOFF --sleep--> FETCHING (same request)
//	FETCHING --any other failure---> FAILED
//
// Example usage:
//
//	p := pagination.NewPaginator[ged.RawEvent](fetcher, ratelimit.ContextSleeper{}, pagination.DefaultConfig(), logger)
//	var events []ged.RawEvent
//	for _, code := range codes {
//		if _, err := p.FetchAll(ctx, baseURL, ged.Query{Country: code}.Values(), &events); err != nil {
//			return err
//		}
//	}
//
// Retries after HTTP 400 use the identical request. A request that is
// permanently invalid therefore never succeeds; Config.MaxBackoffs bounds the
// number of consecutive backoffs and Config.AlarmEvery raises an error log
// while the loop keeps retrying. MaxBackoffs = 0 retries forever.
package pagination
