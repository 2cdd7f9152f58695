package app

import (
	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// DefaultRecencyLimit bounds the counter's de-duplication set.
const DefaultRecencyLimit = 1000

// CounterTracker maintains the lifetime connection counter. Each scrape
// re-reads an overlapping short window of the log, so every open event is
// de-duplicated by (timestamp, descriptor) before it may increment.
//
// When the recency set outgrows its limit it is cleared entirely. An event
// older than the clear point could then be re-counted in theory, but the
// short window is far shorter than the clear cadence, so in practice it
// never re-overlaps that far back. This is a deliberate approximation.
type CounterTracker struct {
	total uint64
	seen  map[string]struct{}
	limit int
}

func NewCounterTracker(limit int) *CounterTracker {
	if limit <= 0 {
		limit = DefaultRecencyLimit
	}
	return &CounterTracker{
		seen:  make(map[string]struct{}, limit),
		limit: limit,
	}
}

// Observe counts the open events not seen before and returns how many were
// genuinely new.
func (c *CounterTracker) Observe(opens []domain.OpenEvent) int {
	counted := 0
	for _, ev := range opens {
		id := ev.DedupID()
		if _, ok := c.seen[id]; ok {
			continue
		}
		c.seen[id] = struct{}{}
		c.total++
		counted++
	}

	if len(c.seen) > c.limit {
		log.Debug().Int("size", len(c.seen)).Msg("Counter recency set cleared")
		c.seen = make(map[string]struct{}, c.limit)
	}
	return counted
}

// Total returns the monotonic lifetime count.
func (c *CounterTracker) Total() uint64 {
	return c.total
}
