package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

func released(ip, port string, duration float64) domain.ConnectionRecord {
	return domain.ConnectionRecord{
		IP:       ip,
		Port:     port,
		FD:       "4",
		Started:  time.Date(2025, 10, 14, 16, 0, 0, 0, time.UTC),
		Duration: duration,
		Status:   domain.StatusReleased,
	}
}

func TestLeaderboardDedupPerOrigin(t *testing.T) {
	board := NewLeaderboard(100, newFakeRepo())

	board.Merge([]domain.ConnectionRecord{
		released("203.0.113.5", "40001", 100),
		released("203.0.113.5", "40002", 900),
		released("203.0.113.5", "40003", 300),
	})

	require.Equal(t, 1, board.Len(), "one entry per origin survives")
	entry, ok := board.Entries()["203.0.113.5:40002"]
	require.True(t, ok)
	assert.Equal(t, 900.0, entry.Duration, "the surviving entry is the origin's maximum")
}

func TestLeaderboardDedupAcrossMerges(t *testing.T) {
	board := NewLeaderboard(100, newFakeRepo())

	board.Merge([]domain.ConnectionRecord{released("203.0.113.5", "40001", 900)})
	board.Merge([]domain.ConnectionRecord{released("203.0.113.5", "40009", 50)})

	require.Equal(t, 1, board.Len())
	_, ok := board.Entries()["203.0.113.5:40001"]
	assert.True(t, ok, "a shorter later connection must not displace the record holder")
}

func TestLeaderboardCapacityBound(t *testing.T) {
	board := NewLeaderboard(100, newFakeRepo())

	candidates := make([]domain.ConnectionRecord, 0, 150)
	for i := 0; i < 150; i++ {
		candidates = append(candidates, released(
			fmt.Sprintf("198.51.%d.%d", i/250, i%250), fmt.Sprintf("4%04d", i), float64(i+1)))
	}
	board.Merge(candidates)

	require.Equal(t, 100, board.Len())

	// The survivors are exactly the top 100 durations: 51..150.
	for _, e := range board.Entries() {
		assert.GreaterOrEqual(t, e.Duration, 51.0)
	}
}

func TestLeaderboardBoundHoldsAcrossManyMerges(t *testing.T) {
	board := NewLeaderboard(100, newFakeRepo())

	for i := 0; i < 500; i++ {
		board.Merge([]domain.ConnectionRecord{released(
			fmt.Sprintf("192.0.%d.%d", i/250, i%250), "40001", float64(i))})
		assert.LessOrEqual(t, board.Len(), 100)
	}
}

func TestLeaderboardPersistAndLoad(t *testing.T) {
	repo := newFakeRepo()

	board := NewLeaderboard(100, repo)
	board.Merge([]domain.ConnectionRecord{released("203.0.113.5", "40001", 900)})
	require.NoError(t, board.Persist())
	assert.Equal(t, 1, repo.saves)

	reloaded := NewLeaderboard(100, repo)
	reloaded.Load()
	assert.Equal(t, 1, reloaded.Len())
}

func TestLeaderboardMergeForcesReleasedStatus(t *testing.T) {
	board := NewLeaderboard(100, newFakeRepo())

	rec := released("203.0.113.5", "40001", 900)
	rec.Status = domain.StatusTrapped // candidate copied before the flip
	board.Merge([]domain.ConnectionRecord{rec})

	for _, e := range board.Entries() {
		assert.Equal(t, domain.StatusReleased, e.Status)
	}
}
