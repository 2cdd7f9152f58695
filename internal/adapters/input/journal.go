package input

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// JournalSource reads the tarpit unit's log out of journald. Each Query
// shells out to journalctl for the requested window; the journal is the
// system of record and is safe to re-read.
type JournalSource struct {
	mu   sync.RWMutex
	unit string
}

func NewJournalSource(unit string) *JournalSource {
	if unit == "" {
		unit = "endlessh"
	}
	return &JournalSource{unit: unit}
}

func (s *JournalSource) Name() string {
	return "journal:" + s.Unit()
}

// Unit returns the watched systemd unit.
func (s *JournalSource) Unit() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unit
}

// SetUnit switches the watched unit; applied on the next Query.
func (s *JournalSource) SetUnit(unit string) {
	if unit == "" {
		return
	}
	s.mu.Lock()
	s.unit = unit
	s.mu.Unlock()
}

func (s *JournalSource) Query(ctx context.Context, lookback time.Duration) (string, error) {
	since := fmt.Sprintf("%d seconds ago", int64(lookback.Seconds()))

	cmd := exec.CommandContext(ctx, "journalctl",
		"-u", s.Unit(),
		"--since", since,
		"--no-pager",
	)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("journalctl query failed: %w", err)
	}
	return string(out), nil
}
