// Package pagination fetches every item of a paged GraphQL collection.
//
// Two strategies are supported and share one sequential fetch loop:
//
//   - Offset: skip/take variables. A page shorter than the page size ends the fetch.
//   - Cursor: first/after variables against a Relay connection
//     (edges, pageInfo.hasNextPage, pageInfo.endCursor, totalCount).
//
// Example usage:
//
//	req := pagination.Request{
//		Query:     query,
//		Variables: map[string]any{"clientId": "0008005369"},
//		PageSize:  500,
//		Locator: pagination.Locator{
//			Root:       []string{"clients"},
//			Connection: []string{"clientProfiles", "engagements"},
//		},
//	}
//	result, err := pagination.FetchAll[Engagement](ctx, gqlClient, req, pagination.Cursor{},
//		pagination.WithObserver(logging.NewPageLogger("fetch")))
//
// The fetcher:
//   - Requests page N+1 only after page N has been received
//   - Derives the next position only from the most recent page
//   - Reports an empty root entity as OutcomeEmptyRoot, not as an error
//   - Returns no items when any request fails (see FetchError)
//
// Result.Envelope rebuilds the nested response shape of a single unpaginated request.
package pagination
