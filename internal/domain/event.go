package domain

import "time"

// dedupTimeLayout matches the second-resolution timestamp endlessh writes,
// which is what the counter tracker keys its recency set on.
const dedupTimeLayout = "2006-01-02T15:04:05"

// OpenEvent is an ACCEPT line from the tarpit log: a client just got stuck.
type OpenEvent struct {
	IP          string
	Port        string
	FD          string
	ActiveCount int
	Timestamp   time.Time
}

// Key returns the correlation key used to join open and close events.
func (e OpenEvent) Key() string {
	return e.IP + ":" + e.Port
}

// DedupID identifies this log entry across overlapping window re-reads.
// Timestamp plus descriptor is stable for a given line even when the same
// window is fetched again on the next scrape.
func (e OpenEvent) DedupID() string {
	return e.Timestamp.UTC().Format(dedupTimeLayout) + "_" + e.FD
}

// CloseEvent is a CLOSE line: the client gave up after Duration seconds.
type CloseEvent struct {
	IP        string
	Port      string
	FD        string
	Duration  float64
	Timestamp time.Time
}

// Key returns the correlation key used to join open and close events.
func (e CloseEvent) Key() string {
	return e.IP + ":" + e.Port
}
