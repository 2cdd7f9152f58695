package input

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// Log line shapes emitted by endlessh (usually wrapped in a journald prefix):
//
//	2025-10-14T16:17:13.280Z ACCEPT host=::ffff:203.0.113.5 port=40001 fd=6 n=3/50
//	2025-10-14T16:29:27.781Z CLOSE host=::ffff:203.0.113.5 port=40001 fd=6 time=734.500 bytes=1234
const (
	acceptMarker = "ACCEPT host="
	closeMarker  = "CLOSE host="

	eventTimeLayout = "2006-01-02T15:04:05"
)

// LineKind classifies a raw log line.
type LineKind int

const (
	LineUnrecognized LineKind = iota
	LineOpen
	LineClose
)

// Extractor turns raw log text into typed open/close event streams. Lines
// that match neither pattern are skipped without error; a matching line with
// an unparseable timestamp keeps the event and falls back to "now" so a real
// connection is never dropped from accounting.
type Extractor struct {
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract scans text line by line and returns the open and close events in
// encounter order.
func (e *Extractor) Extract(text string) ([]domain.OpenEvent, []domain.CloseEvent) {
	var opens []domain.OpenEvent
	var closes []domain.CloseEvent

	for len(text) > 0 {
		var line string
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			line, text = text[:idx], text[idx+1:]
		} else {
			line, text = text, ""
		}

		open, closed, kind := e.classify(line)
		switch kind {
		case LineOpen:
			opens = append(opens, open)
		case LineClose:
			closes = append(closes, closed)
		}
	}
	return opens, closes
}

func (e *Extractor) classify(line string) (domain.OpenEvent, domain.CloseEvent, LineKind) {
	if idx := markerIndex(line, acceptMarker); idx >= 0 {
		if open, ok := e.parseOpen(line, idx); ok {
			return open, domain.CloseEvent{}, LineOpen
		}
		return domain.OpenEvent{}, domain.CloseEvent{}, LineUnrecognized
	}
	if idx := markerIndex(line, closeMarker); idx >= 0 {
		if closed, ok := e.parseClose(line, idx); ok {
			return domain.OpenEvent{}, closed, LineClose
		}
	}
	return domain.OpenEvent{}, domain.CloseEvent{}, LineUnrecognized
}

func (e *Extractor) parseOpen(line string, marker int) (domain.OpenEvent, bool) {
	fields := eventFields(line[marker:])

	host, ok := parseHost(fields["host"])
	if !ok {
		return domain.OpenEvent{}, false
	}
	port, fd := fields["port"], fields["fd"]
	if port == "" || fd == "" {
		return domain.OpenEvent{}, false
	}

	// n=3/50 is endlessh's own active/max count at the moment of accept.
	active := 0
	if n := fields["n"]; n != "" {
		if cur, _, found := strings.Cut(n, "/"); found {
			if v, err := strconv.Atoi(cur); err == nil {
				active = v
			}
		}
	}

	return domain.OpenEvent{
		IP:          host,
		Port:        port,
		FD:          fd,
		ActiveCount: active,
		Timestamp:   lineTimestamp(line, e.now()),
	}, true
}

func (e *Extractor) parseClose(line string, marker int) (domain.CloseEvent, bool) {
	fields := eventFields(line[marker:])

	host, ok := parseHost(fields["host"])
	if !ok {
		return domain.CloseEvent{}, false
	}
	port, fd := fields["port"], fields["fd"]
	if port == "" || fd == "" {
		return domain.CloseEvent{}, false
	}
	duration, err := strconv.ParseFloat(fields["time"], 64)
	if err != nil || duration < 0 {
		return domain.CloseEvent{}, false
	}

	return domain.CloseEvent{
		IP:        host,
		Port:      port,
		FD:        fd,
		Duration:  duration,
		Timestamp: lineTimestamp(line, e.now()),
	}, true
}

// markerIndex finds marker at a token boundary, or -1.
func markerIndex(line, marker string) int {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return -1
	}
	if idx > 0 && line[idx-1] != ' ' {
		return -1
	}
	return idx
}

// eventFields splits "host=x port=y ..." into a key/value map. Tokens
// without '=' are skipped.
func eventFields(s string) map[string]string {
	fields := make(map[string]string, 6)
	for _, tok := range strings.Fields(s) {
		if k, v, found := strings.Cut(tok, "="); found && k != "" {
			fields[k] = v
		}
	}
	return fields
}

// parseHost strips the IPv4-mapped prefix endlessh logs for v4 peers and
// validates the remainder as an address.
func parseHost(host string) (string, bool) {
	host = strings.TrimPrefix(host, "::ffff:")
	if host == "" {
		return "", false
	}
	if _, err := netip.ParseAddr(host); err != nil {
		return "", false
	}
	return host, true
}

// lineTimestamp scans the line for endlessh's ISO timestamp and parses it as
// UTC, ignoring the fractional suffix. Returns fallback when no token parses.
func lineTimestamp(line string, fallback time.Time) time.Time {
	for _, tok := range strings.Fields(line) {
		if len(tok) < len(eventTimeLayout) {
			continue
		}
		if tok[4] != '-' || tok[7] != '-' || tok[10] != 'T' {
			continue
		}
		if ts, err := time.ParseInLocation(eventTimeLayout, tok[:len(eventTimeLayout)], time.UTC); err == nil {
			return ts
		}
	}
	return fallback
}
