package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	acceptLine = `Oct 14 16:17:13 bastion endlessh[811]: 2025-10-14T16:17:13.280Z ACCEPT host=::ffff:203.0.113.5 port=40001 fd=6 n=3/50`
	closeLine  = `Oct 14 16:29:27 bastion endlessh[811]: 2025-10-14T16:29:27.781Z CLOSE host=::ffff:203.0.113.5 port=40001 fd=6 time=734.500 bytes=1234`
)

func TestClassify(t *testing.T) {
	fixedNow := time.Date(2025, 10, 14, 17, 0, 0, 0, time.UTC)
	extractor := &Extractor{now: func() time.Time { return fixedNow }}

	tests := []struct {
		name     string
		line     string
		wantKind LineKind
		wantIP   string
		wantPort string
		wantFD   string
	}{
		{
			name:     "accept line",
			line:     acceptLine,
			wantKind: LineOpen,
			wantIP:   "203.0.113.5",
			wantPort: "40001",
			wantFD:   "6",
		},
		{
			name:     "close line",
			line:     closeLine,
			wantKind: LineClose,
			wantIP:   "203.0.113.5",
			wantPort: "40001",
			wantFD:   "6",
		},
		{
			name:     "accept without mapped prefix",
			line:     `2025-10-14T16:17:13.280Z ACCEPT host=198.51.100.7 port=50123 fd=4 n=1/50`,
			wantKind: LineOpen,
			wantIP:   "198.51.100.7",
			wantPort: "50123",
			wantFD:   "4",
		},
		{
			name:     "ipv6 peer",
			line:     `2025-10-14T16:17:13.280Z ACCEPT host=2001:db8::5 port=50124 fd=5 n=2/50`,
			wantKind: LineOpen,
			wantIP:   "2001:db8::5",
			wantPort: "50124",
			wantFD:   "5",
		},
		{
			name:     "daemon chatter ignored",
			line:     `Oct 14 16:17:10 bastion systemd[1]: Started endlessh.service.`,
			wantKind: LineUnrecognized,
		},
		{
			name:     "empty line",
			line:     "",
			wantKind: LineUnrecognized,
		},
		{
			name:     "accept with bogus host",
			line:     `2025-10-14T16:17:13.280Z ACCEPT host=not-an-address port=1 fd=4 n=1/50`,
			wantKind: LineUnrecognized,
		},
		{
			name:     "close with missing time field",
			line:     `2025-10-14T16:29:27.781Z CLOSE host=::ffff:203.0.113.5 port=40001 fd=6 bytes=1234`,
			wantKind: LineUnrecognized,
		},
		{
			name:     "marker inside another word",
			line:     `garbageACCEPT host=203.0.113.5 port=1 fd=2 n=1/50`,
			wantKind: LineUnrecognized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			open, closed, kind := extractor.classify(tc.line)
			assert.Equal(t, tc.wantKind, kind)

			switch tc.wantKind {
			case LineOpen:
				assert.Equal(t, tc.wantIP, open.IP)
				assert.Equal(t, tc.wantPort, open.Port)
				assert.Equal(t, tc.wantFD, open.FD)
			case LineClose:
				assert.Equal(t, tc.wantIP, closed.IP)
				assert.Equal(t, tc.wantPort, closed.Port)
				assert.Equal(t, tc.wantFD, closed.FD)
			}
		})
	}
}

func TestClassifyTimestamps(t *testing.T) {
	fixedNow := time.Date(2025, 10, 14, 17, 0, 0, 0, time.UTC)
	extractor := &Extractor{now: func() time.Time { return fixedNow }}

	t.Run("parses embedded UTC timestamp", func(t *testing.T) {
		open, _, kind := extractor.classify(acceptLine)
		require.Equal(t, LineOpen, kind)
		assert.Equal(t, time.Date(2025, 10, 14, 16, 17, 13, 0, time.UTC), open.Timestamp)
	})

	t.Run("falls back to now when timestamp is missing", func(t *testing.T) {
		open, _, kind := extractor.classify(`ACCEPT host=::ffff:203.0.113.5 port=40001 fd=6 n=3/50`)
		require.Equal(t, LineOpen, kind)
		assert.Equal(t, fixedNow, open.Timestamp)
	})

	t.Run("close duration parsed exactly", func(t *testing.T) {
		_, closed, kind := extractor.classify(closeLine)
		require.Equal(t, LineClose, kind)
		assert.Equal(t, 734.5, closed.Duration)
	})

	t.Run("active count parsed from n field", func(t *testing.T) {
		open, _, kind := extractor.classify(acceptLine)
		require.Equal(t, LineOpen, kind)
		assert.Equal(t, 3, open.ActiveCount)
	})
}

func TestExtract(t *testing.T) {
	extractor := NewExtractor()

	text := acceptLine + "\n" +
		"noise that matches nothing\n" +
		closeLine + "\n" +
		`2025-10-14T16:18:00.000Z ACCEPT host=::ffff:198.51.100.7 port=50123 fd=7 n=4/50` + "\n"

	opens, closes := extractor.Extract(text)
	require.Len(t, opens, 2)
	require.Len(t, closes, 1)

	assert.Equal(t, "203.0.113.5:40001", opens[0].Key())
	assert.Equal(t, "198.51.100.7:50123", opens[1].Key())
	assert.Equal(t, "203.0.113.5:40001", closes[0].Key())
}

func TestExtractNoTrailingNewline(t *testing.T) {
	extractor := NewExtractor()

	opens, closes := extractor.Extract(acceptLine)
	assert.Len(t, opens, 1)
	assert.Empty(t, closes)
}

func BenchmarkClassify(b *testing.B) {
	extractor := NewExtractor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractor.classify(acceptLine)
	}
}
