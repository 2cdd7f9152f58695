package input

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// maxLineBytes caps the scanner buffer; endlessh lines are short, anything
// bigger is not ours to parse.
const maxLineBytes = 64 * 1024

// FileSource serves Query from a plain endlessh log file, for hosts without
// systemd. Windowing is done from the timestamps embedded in the lines:
// lines that carry no parseable timestamp are treated as outside any window.
type FileSource struct {
	path string
	now  func() time.Time
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func (s *FileSource) Query(ctx context.Context, lookback time.Duration) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	cutoff := s.now().Add(-lookback)

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line := scanner.Text()
		ts := lineTimestamp(line, time.Time{})
		if ts.IsZero() || ts.Before(cutoff) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read log file: %w", err)
	}
	return b.String(), nil
}
