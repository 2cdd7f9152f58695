package ports

import (
	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// LeaderboardRepository persists the hall of fame across process restarts.
//
// Load tolerates a missing or corrupt backing file by returning an empty
// map and no error; persistence failures are reported but never fatal (the
// in-memory leaderboard stays authoritative for the running process).
type LeaderboardRepository interface {
	Load() (map[string]domain.ConnectionRecord, error)
	Save(entries map[string]domain.ConnectionRecord) error
}
