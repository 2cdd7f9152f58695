// Package storage persists the hall of fame as a JSON file keyed by
// connection id, matching the layout the exporter has always written so an
// existing file survives an upgrade.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// JSONFileRepository implements ports.LeaderboardRepository on a single
// JSON file. The containing directory is created on first write.
type JSONFileRepository struct {
	path string
}

func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{path: path}
}

// Load reads the persisted leaderboard. A missing or corrupt file yields an
// empty map and no error: losing history is preferable to refusing to start.
func (r *JSONFileRepository) Load() (map[string]domain.ConnectionRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("file", r.path).Msg("No existing leaderboard found, starting fresh")
			return map[string]domain.ConnectionRecord{}, nil
		}
		return map[string]domain.ConnectionRecord{}, fmt.Errorf("read leaderboard file: %w", err)
	}

	entries := make(map[string]domain.ConnectionRecord)
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("file", r.path).Msg("Leaderboard file corrupt, starting fresh")
		return map[string]domain.ConnectionRecord{}, nil
	}
	return entries, nil
}

// Save writes the leaderboard atomically: encode to a temp file in the same
// directory, then rename over the target.
func (r *JSONFileRepository) Save(entries map[string]domain.ConnectionRecord) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create leaderboard directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp leaderboard file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		tmp.Close()
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync leaderboard file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close leaderboard file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace leaderboard file: %w", err)
	}
	return nil
}
