package app

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
	"github.com/Peuqui/endlessh-exporter/internal/ports"
)

// Leaderboard is the bounded, per-origin-deduplicated hall of fame of the
// longest released connections. It is the only writer to its repository.
//
// Not safe for concurrent use on its own; the engine serializes access.
type Leaderboard struct {
	capacity int
	entries  map[string]domain.ConnectionRecord
	repo     ports.LeaderboardRepository
}

func NewLeaderboard(capacity int, repo ports.LeaderboardRepository) *Leaderboard {
	if capacity <= 0 {
		capacity = domain.DefaultLeaderboardCapacity
	}
	return &Leaderboard{
		capacity: capacity,
		entries:  make(map[string]domain.ConnectionRecord),
		repo:     repo,
	}
}

// Load populates the leaderboard from the repository. Failures leave it
// empty; history loss is not a startup error.
func (l *Leaderboard) Load() {
	entries, err := l.repo.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load leaderboard, starting fresh")
		l.entries = make(map[string]domain.ConnectionRecord)
		return
	}
	l.entries = entries
	if len(entries) > 0 {
		log.Info().Int("entries", len(entries)).Msg("Leaderboard loaded")
	}
}

// Merge folds this pass's released candidates in, then restores the two
// invariants: at most one entry per origin (the longest seen for that
// origin) and at most capacity entries total (the longest overall).
func (l *Leaderboard) Merge(candidates []domain.ConnectionRecord) {
	for _, c := range candidates {
		c.Status = domain.StatusReleased
		l.entries[c.ID()] = c
	}

	bestByIP := make(map[string]string, len(l.entries))
	for id, e := range l.entries {
		best, ok := bestByIP[e.IP]
		if !ok || e.Duration > l.entries[best].Duration {
			bestByIP[e.IP] = id
		}
	}
	deduped := make(map[string]domain.ConnectionRecord, len(bestByIP))
	for _, id := range bestByIP {
		deduped[id] = l.entries[id]
	}
	l.entries = deduped

	if len(l.entries) > l.capacity {
		ids := make([]string, 0, len(l.entries))
		for id := range l.entries {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			a, b := l.entries[ids[i]], l.entries[ids[j]]
			if a.Duration != b.Duration {
				return a.Duration > b.Duration
			}
			return ids[i] < ids[j]
		})
		trimmed := make(map[string]domain.ConnectionRecord, l.capacity)
		for _, id := range ids[:l.capacity] {
			trimmed[id] = l.entries[id]
		}
		l.entries = trimmed
	}
}

// Persist writes the current entries through the repository.
func (l *Leaderboard) Persist() error {
	return l.repo.Save(l.entries)
}

// Entries exposes the current entries. Callers must not mutate the map.
func (l *Leaderboard) Entries() map[string]domain.ConnectionRecord {
	return l.entries
}

// Len returns the current entry count.
func (l *Leaderboard) Len() int {
	return len(l.entries)
}
