// Package ports defines the interfaces between the reconciliation core and
// its external collaborators (log source, geolocation, durable storage).
// Implementations live in internal/adapters/.
package ports

import (
	"context"
	"time"
)

// LogSource returns the raw tarpit log covering the given look-back window.
//
// The source is non-transactional and idempotent to re-query: the engine
// fetches two overlapping windows per pass (a long one for reconciliation
// and a short one for the lifetime counter) and may fetch the same window
// again on the next scrape.
type LogSource interface {
	// Query returns the raw text for the window [now-lookback, now].
	// A failed query is non-fatal to the caller; the previous pass result
	// is served instead.
	Query(ctx context.Context, lookback time.Duration) (string, error)

	// Name identifies the source for logging.
	Name() string
}
