package app

import (
	"context"
	"time"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
	"github.com/Peuqui/endlessh-exporter/internal/ports"
)

// PassResult is the reconciled working set of one pass. It is rebuilt from
// scratch every pass and owned exclusively by the caller.
type PassResult struct {
	// Records is the working set keyed by connection id (ip:port).
	Records map[string]*domain.ConnectionRecord
	// Terminated holds the records that matched a close event this pass,
	// in close-event order. These are the leaderboard candidates.
	Terminated []domain.ConnectionRecord
	// PerIP counts open events per origin in this pass's window.
	PerIP map[string]int
	// Locations holds the location each origin resolved to this pass,
	// including the Unknown placeholder on lookup failure.
	Locations map[string]domain.GeoLocation
	// GeoFailures counts failed geolocation lookups during the pass.
	GeoFailures int
}

// Reconciler correlates open and close events into connection records.
//
// The correlation key is (origin address, origin port): descriptor ids are
// reused by the tarpit, but a source port is unique among concurrent
// connections. Re-reading the same window is idempotent: later open events
// for a key overwrite earlier ones, so duplicated log lines collapse into a
// single record.
type Reconciler struct {
	geo ports.GeoResolver
	now func() time.Time
}

func NewReconciler(geo ports.GeoResolver) *Reconciler {
	return &Reconciler{geo: geo, now: time.Now}
}

// Reconcile builds the working set for one pass from the long-window events.
//
// A key present in any close event is classified released even if its close
// line was read before its open line; the window is not assumed ordered.
// A close event with no matching open event anywhere in the window is
// ignored: there is nothing to synthesize history from.
func (r *Reconciler) Reconcile(ctx context.Context, opens []domain.OpenEvent, closes []domain.CloseEvent) *PassResult {
	result := &PassResult{
		Records:   make(map[string]*domain.ConnectionRecord, len(opens)),
		PerIP:     make(map[string]int),
		Locations: make(map[string]domain.GeoLocation),
	}

	closedKeys := make(map[string]struct{}, len(closes))
	for _, ev := range closes {
		closedKeys[ev.Key()] = struct{}{}
	}

	for _, ev := range opens {
		loc, ok := result.Locations[ev.IP]
		if !ok {
			var err error
			loc, err = r.geo.Resolve(ctx, ev.IP)
			if err != nil {
				result.GeoFailures++
			}
			result.Locations[ev.IP] = loc
		}

		status := domain.StatusTrapped
		if _, closed := closedKeys[ev.Key()]; closed {
			status = domain.StatusReleased
		}

		result.Records[ev.Key()] = &domain.ConnectionRecord{
			IP:          ev.IP,
			Port:        ev.Port,
			FD:          ev.FD,
			Country:     loc.Country,
			CountryCode: loc.CountryCode,
			City:        loc.City,
			Started:     ev.Timestamp,
			Status:      status,
		}
		result.PerIP[ev.IP]++
	}

	for _, ev := range closes {
		rec, ok := result.Records[ev.Key()]
		if !ok {
			continue
		}
		rec.Duration = ev.Duration
		result.Terminated = append(result.Terminated, *rec)
	}

	now := r.now().UTC()
	for _, rec := range result.Records {
		if rec.Status == domain.StatusTrapped {
			rec.Duration = now.Sub(rec.Started).Seconds()
		}
	}

	return result
}

// ActiveRecords returns the records still trapped, keyed by connection id.
func (p *PassResult) ActiveRecords() map[string]domain.ConnectionRecord {
	active := make(map[string]domain.ConnectionRecord)
	for id, rec := range p.Records {
		if rec.Status == domain.StatusTrapped {
			active[id] = *rec
		}
	}
	return active
}
