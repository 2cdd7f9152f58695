package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceWindowing(t *testing.T) {
	now := time.Date(2025, 10, 14, 17, 0, 0, 0, time.UTC)

	lines := []string{
		`2025-10-14T10:00:00.000Z ACCEPT host=::ffff:192.0.2.1 port=1000 fd=4 n=1/50`, // 7h old
		`2025-10-14T14:30:00.000Z ACCEPT host=::ffff:192.0.2.2 port=1001 fd=5 n=2/50`, // 2.5h old
		`no timestamp on this line`,
		`2025-10-14T16:58:00.000Z CLOSE host=::ffff:192.0.2.2 port=1001 fd=5 time=8880.000 bytes=1`, // 2m old
	}

	path := filepath.Join(t.TempDir(), "endlessh.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	source := NewFileSource(path)
	source.now = func() time.Time { return now }

	t.Run("long window keeps recent lines", func(t *testing.T) {
		text, err := source.Query(context.Background(), 6*time.Hour)
		require.NoError(t, err)
		assert.NotContains(t, text, "port=1000")
		assert.Contains(t, text, "port=1001")
		assert.NotContains(t, text, "no timestamp")
	})

	t.Run("short window keeps only the close", func(t *testing.T) {
		text, err := source.Query(context.Background(), 5*time.Minute)
		require.NoError(t, err)
		assert.NotContains(t, text, "ACCEPT")
		assert.Contains(t, text, "CLOSE")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		missing := NewFileSource(filepath.Join(t.TempDir(), "nope.log"))
		_, err := missing.Query(context.Background(), time.Hour)
		assert.Error(t, err)
	})
}

func TestFileSourceName(t *testing.T) {
	source := NewFileSource("/var/log/endlessh.log")
	assert.Equal(t, "file:/var/log/endlessh.log", source.Name())
}
