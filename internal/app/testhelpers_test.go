package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// fakeGeo resolves every address to a fixed per-IP location without the
// network. IPs listed in failFor fail open.
type fakeGeo struct {
	locations map[string]domain.GeoLocation
	failFor   map[string]bool
	calls     int
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{
		locations: map[string]domain.GeoLocation{},
		failFor:   map[string]bool{},
	}
}

func (g *fakeGeo) Resolve(ctx context.Context, ip string) (domain.GeoLocation, error) {
	g.calls++
	if g.failFor[ip] {
		return domain.UnknownLocation(), errors.New("lookup failed")
	}
	if loc, ok := g.locations[ip]; ok {
		return loc, nil
	}
	return domain.UnknownLocation(), nil
}

// fakeRepo is an in-memory leaderboard repository.
type fakeRepo struct {
	saved   map[string]domain.ConnectionRecord
	saves   int
	failing bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{saved: map[string]domain.ConnectionRecord{}}
}

func (r *fakeRepo) Load() (map[string]domain.ConnectionRecord, error) {
	out := make(map[string]domain.ConnectionRecord, len(r.saved))
	for k, v := range r.saved {
		out[k] = v
	}
	return out, nil
}

func (r *fakeRepo) Save(entries map[string]domain.ConnectionRecord) error {
	if r.failing {
		return errors.New("disk full")
	}
	r.saves++
	r.saved = make(map[string]domain.ConnectionRecord, len(entries))
	for k, v := range entries {
		r.saved[k] = v
	}
	return nil
}

// fakeSource serves canned text per window duration.
type fakeSource struct {
	byWindow map[time.Duration]string
	err      error
	queries  int
}

func (s *fakeSource) Query(ctx context.Context, lookback time.Duration) (string, error) {
	s.queries++
	if s.err != nil {
		return "", s.err
	}
	return s.byWindow[lookback], nil
}

func (s *fakeSource) Name() string { return "fake" }

// passthroughRenderer renders a trivially inspectable body.
type passthroughRenderer struct{}

func (passthroughRenderer) Render(agg *Aggregate) string {
	return fmt.Sprintf("total=%d display=%d active=%d", agg.TotalCounter, len(agg.Display), agg.Active)
}

func openEvent(ip, port, fd string, ts time.Time) domain.OpenEvent {
	return domain.OpenEvent{IP: ip, Port: port, FD: fd, ActiveCount: 1, Timestamp: ts}
}

func closeEvent(ip, port, fd string, duration float64, ts time.Time) domain.CloseEvent {
	return domain.CloseEvent{IP: ip, Port: port, FD: fd, Duration: duration, Timestamp: ts}
}
