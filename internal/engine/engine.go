// Package engine defines the capability contract every search backend adapter
// implements, the shared error taxonomy for upstream failures, and a registry
// of known adapters. New backends are added by implementing Adapter and
// registering it, not by touching any central dispatcher.
package engine

import (
	"context"

	"github.com/sievesearch/sieve/internal/result"
)

// Adapter scrapes structured results out of one upstream search backend.
// Implementations perform exactly one upstream fetch per Results call;
// pagination requires a new call with a different page number.
type Adapter interface {
	// Name returns the unique engine name used for result attribution.
	Name() string

	// Results queries the upstream backend and returns the scraped results
	// keyed by URL. Keys are unique; no ordering is promised. page values 0
	// and 1 both mean the first page. timeoutSecs bounds the upstream fetch.
	Results(ctx context.Context, query string, page uint32, userAgent string, timeoutSecs uint8) (map[string]result.SearchResult, error)
}
