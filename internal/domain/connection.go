package domain

import (
	"time"
)

// Connection status values as they appear on the wire. "trapped" means the
// peer is still stuck in the tarpit; "released" means endlessh reported a
// CLOSE with a final duration.
const (
	StatusTrapped  = "trapped"
	StatusReleased = "released"
)

// DefaultLeaderboardCapacity bounds the persisted hall of fame.
const DefaultLeaderboardCapacity = 100

// ConnectionRecord is one observed tarpit connection. Records are keyed by
// IP:port: endlessh reuses file descriptors aggressively, but a source port
// is unique among concurrent connections.
type ConnectionRecord struct {
	IP          string    `json:"ip"`
	Port        string    `json:"port"`
	FD          string    `json:"fd"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	City        string    `json:"city"`
	Started     time.Time `json:"started"`
	Duration    float64   `json:"duration"`
	Status      string    `json:"status"`
}

// ID returns the correlation key shared by open and close events.
func (r ConnectionRecord) ID() string {
	return r.IP + ":" + r.Port
}

// GeoLocation is a cached geolocation lookup result.
type GeoLocation struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// UnknownLocation is the fail-open placeholder used when the geolocation
// collaborator is unreachable, rate-limited, or slow.
func UnknownLocation() GeoLocation {
	return GeoLocation{
		Country:     "Unknown",
		CountryCode: "XX",
		City:        "Unknown",
	}
}
