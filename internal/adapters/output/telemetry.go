package output

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/Peuqui/endlessh-exporter/internal/app"
)

// Telemetry tracks the exporter's own health in a private registry,
// appended to the scrape response after the domain series. Implements
// app.PassObserver.
type Telemetry struct {
	registry *prometheus.Registry

	passesTotal       prometheus.Counter
	passDuration      prometheus.Histogram
	logSourceFailures prometheus.Counter
	geoFailures       prometheus.Counter
	persistFailures   prometheus.Counter
	staleServes       prometheus.Counter
	leaderboardSize   prometheus.Gauge
}

// TelemetryOptions provides gauges read lazily at scrape time.
type TelemetryOptions struct {
	// GeoCacheLen reports the geolocation cache population; may be nil.
	GeoCacheLen func() int
}

func NewTelemetry(opts TelemetryOptions) *Telemetry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	t := &Telemetry{registry: registry}

	t.passesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "endlessh_exporter",
		Name:      "passes_total",
		Help:      "Reconciliation passes executed.",
	})
	t.passDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "endlessh_exporter",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of one reconciliation pass.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	t.logSourceFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "endlessh_exporter",
		Name:      "log_source_failures_total",
		Help:      "Failed log source queries.",
	})
	t.geoFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "endlessh_exporter",
		Name:      "geo_lookup_failures_total",
		Help:      "Failed or timed-out geolocation lookups.",
	})
	t.persistFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "endlessh_exporter",
		Name:      "persist_failures_total",
		Help:      "Failed leaderboard persistence attempts.",
	})
	t.staleServes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "endlessh_exporter",
		Name:      "stale_serves_total",
		Help:      "Scrapes answered with the previous pass result.",
	})
	t.leaderboardSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "endlessh_exporter",
		Name:      "leaderboard_entries",
		Help:      "Current leaderboard entry count.",
	})

	if opts.GeoCacheLen != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "endlessh_exporter",
			Name:      "geo_cache_entries",
			Help:      "Cached geolocation lookups.",
		}, func() float64 {
			return float64(opts.GeoCacheLen())
		})
	}

	return t
}

// PassCompleted implements app.PassObserver.
func (t *Telemetry) PassCompleted(stats app.PassStats) {
	t.passesTotal.Inc()
	t.passDuration.Observe(stats.Duration.Seconds())
	t.leaderboardSize.Set(float64(stats.LeaderboardSize))
	t.geoFailures.Add(float64(stats.GeoFailures))
	if stats.LogSourceFailed {
		t.logSourceFailures.Inc()
	}
	if stats.PersistFailed {
		t.persistFailures.Inc()
	}
	if stats.ServedStale {
		t.staleServes.Inc()
	}
}

// WriteTo encodes the telemetry registry in the text exposition format.
func (t *Telemetry) WriteTo(w io.Writer) error {
	families, err := t.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather telemetry: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode telemetry: %w", err)
		}
	}
	return nil
}
