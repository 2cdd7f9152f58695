package app

import (
	"sort"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// Aggregate is the derived view one scrape renders. The display set mixes
// currently trapped connections with the historically notable released ones
// from the leaderboard, so the exporter shows both current and all-time
// records without unbounded memory, at the cost of the displayed total not
// being a literal connection count.
type Aggregate struct {
	// Display is the union, sorted trapped-first then by descending
	// duration. The slice index is the rendered sort_order.
	Display []domain.ConnectionRecord

	TotalCounter uint64
	Active       int
	MaxDuration  float64
	AvgDuration  float64

	PerIP      []IPStat
	PerCountry []CountryStat
	UniqueIPs  int
}

// IPStat is the per-origin rollup from the current pass.
type IPStat struct {
	IP          string
	Count       int
	Location    domain.GeoLocation
	MaxDuration float64
	AvgDuration float64
}

// CountryStat is the per-region connection total.
type CountryStat struct {
	Country string
	Count   int
}

// BuildAggregate computes the scrape view from one pass and the current
// leaderboard. Where a leaderboard entry and an active record share a
// connection id, the leaderboard entry wins.
func BuildAggregate(pass *PassResult, leaderboard map[string]domain.ConnectionRecord, totalCounter uint64) *Aggregate {
	display := pass.ActiveRecords()
	for id, e := range leaderboard {
		display[id] = e
	}

	agg := &Aggregate{
		TotalCounter: totalCounter,
		UniqueIPs:    len(pass.PerIP),
	}

	agg.Display = make([]domain.ConnectionRecord, 0, len(display))
	for _, rec := range display {
		agg.Display = append(agg.Display, rec)
	}
	sort.Slice(agg.Display, func(i, j int) bool {
		a, b := agg.Display[i], agg.Display[j]
		if a.Status != b.Status {
			return a.Status == domain.StatusTrapped
		}
		if a.Duration != b.Duration {
			return a.Duration > b.Duration
		}
		return a.ID() < b.ID()
	})

	var sum float64
	durationsByIP := make(map[string][]float64)
	for _, rec := range agg.Display {
		if rec.Status == domain.StatusTrapped {
			agg.Active++
		}
		if rec.Duration > agg.MaxDuration {
			agg.MaxDuration = rec.Duration
		}
		sum += rec.Duration
		durationsByIP[rec.IP] = append(durationsByIP[rec.IP], rec.Duration)
	}
	if len(agg.Display) > 0 {
		agg.AvgDuration = sum / float64(len(agg.Display))
	}

	ips := make([]string, 0, len(pass.PerIP))
	for ip := range pass.PerIP {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	countryCounts := make(map[string]int)
	for _, ip := range ips {
		loc, ok := pass.Locations[ip]
		if !ok {
			loc = domain.UnknownLocation()
		}

		stat := IPStat{
			IP:       ip,
			Count:    pass.PerIP[ip],
			Location: loc,
		}
		if durations := durationsByIP[ip]; len(durations) > 0 {
			var total float64
			for _, d := range durations {
				if d > stat.MaxDuration {
					stat.MaxDuration = d
				}
				total += d
			}
			stat.AvgDuration = total / float64(len(durations))
		}
		agg.PerIP = append(agg.PerIP, stat)

		countryCounts[loc.Country] += pass.PerIP[ip]
	}

	countries := make([]string, 0, len(countryCounts))
	for country := range countryCounts {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	for _, country := range countries {
		agg.PerCountry = append(agg.PerCountry, CountryStat{Country: country, Count: countryCounts[country]})
	}

	return agg
}
