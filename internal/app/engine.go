package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
	"github.com/Peuqui/endlessh-exporter/internal/ports"
)

// EventExtractor turns raw log text into typed event streams.
type EventExtractor interface {
	Extract(text string) ([]domain.OpenEvent, []domain.CloseEvent)
}

// Renderer formats an aggregate as the scrape response body.
type Renderer interface {
	Render(agg *Aggregate) string
}

// PassStats describes one reconciliation pass for telemetry.
type PassStats struct {
	Duration        time.Duration
	OpenEvents      int
	CloseEvents     int
	NewConnections  int
	GeoFailures     int
	LogSourceFailed bool
	PersistFailed   bool
	ServedStale     bool
	LeaderboardSize int
}

// PassObserver receives the outcome of each pass.
type PassObserver interface {
	PassCompleted(stats PassStats)
}

// EngineConfig holds the tunables a running engine accepts at runtime.
type EngineConfig struct {
	// LongWindow bounds how far back connections are reconciled. It must
	// exceed the tarpit's maximum realistic trap duration.
	LongWindow time.Duration
	// ShortWindow is the counter's re-scan window. Much shorter than
	// LongWindow by construction.
	ShortWindow time.Duration
}

// DefaultEngineConfig matches the windows the exporter has always used.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LongWindow:  6 * time.Hour,
		ShortWindow: 5 * time.Minute,
	}
}

// Engine owns the shared mutable state of the exporter (geo cache handle,
// leaderboard, counter, last rendered output) and runs the reconciliation
// pipeline as a critical section: one pass at a time, end to end.
type Engine struct {
	mu sync.Mutex

	source      ports.LogSource
	extractor   EventExtractor
	reconciler  *Reconciler
	leaderboard *Leaderboard
	counter     *CounterTracker
	renderer    Renderer
	observers   []PassObserver

	config atomic.Pointer[EngineConfig]

	// lastOutput is the stale-but-valid response served when the log
	// source is unreachable. Guarded by mu.
	lastOutput string
}

func NewEngine(
	source ports.LogSource,
	extractor EventExtractor,
	geo ports.GeoResolver,
	leaderboard *Leaderboard,
	counter *CounterTracker,
	renderer Renderer,
	config EngineConfig,
) *Engine {
	e := &Engine{
		source:      source,
		extractor:   extractor,
		reconciler:  NewReconciler(geo),
		leaderboard: leaderboard,
		counter:     counter,
		renderer:    renderer,
	}
	e.config.Store(&config)
	return e
}

// AddObserver registers a pass observer. Not safe to call concurrently with
// Scrape; wire observers before serving.
func (e *Engine) AddObserver(obs PassObserver) {
	e.observers = append(e.observers, obs)
}

// Config returns the current engine configuration.
func (e *Engine) Config() EngineConfig {
	return *e.config.Load()
}

// ApplyConfig swaps the runtime configuration, taking effect on the next
// pass. Invalid window combinations are rejected.
func (e *Engine) ApplyConfig(config EngineConfig) bool {
	if config.LongWindow <= 0 || config.ShortWindow <= 0 || config.ShortWindow > config.LongWindow {
		log.Error().
			Dur("long", config.LongWindow).
			Dur("short", config.ShortWindow).
			Msg("Rejecting invalid window configuration")
		return false
	}
	e.config.Store(&config)
	log.Info().
		Dur("long", config.LongWindow).
		Dur("short", config.ShortWindow).
		Msg("Engine configuration applied")
	return true
}

// Scrape runs one full reconciliation pass and returns the rendered
// exposition. When the log source fails, the previous pass's output is
// returned unchanged: stale but consistent.
func (e *Engine) Scrape(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	config := e.Config()
	stats := PassStats{}

	longText, err := e.source.Query(ctx, config.LongWindow)
	if err != nil {
		log.Error().Err(err).Str("source", e.source.Name()).Msg("Log source query failed, serving previous result")
		stats.LogSourceFailed = true
		stats.ServedStale = true
		stats.Duration = time.Since(start)
		stats.LeaderboardSize = e.leaderboard.Len()
		e.notify(stats)
		return e.lastOutput
	}

	// A failed short-window fetch only affects the lifetime counter; the
	// pass still refreshes everything else.
	shortText, err := e.source.Query(ctx, config.ShortWindow)
	if err != nil {
		log.Warn().Err(err).Msg("Short-window query failed, counter unchanged this pass")
		shortText = ""
	}

	opens, closes := e.extractor.Extract(longText)
	stats.OpenEvents = len(opens)
	stats.CloseEvents = len(closes)

	pass := e.reconciler.Reconcile(ctx, opens, closes)
	stats.GeoFailures = pass.GeoFailures

	e.leaderboard.Merge(pass.Terminated)
	if err := e.leaderboard.Persist(); err != nil {
		log.Error().Err(err).Msg("Leaderboard persistence failed, in-memory state retained")
		stats.PersistFailed = true
	}

	shortOpens, _ := e.extractor.Extract(shortText)
	stats.NewConnections = e.counter.Observe(shortOpens)

	agg := BuildAggregate(pass, e.leaderboard.Entries(), e.counter.Total())
	e.lastOutput = e.renderer.Render(agg)

	stats.Duration = time.Since(start)
	stats.LeaderboardSize = e.leaderboard.Len()
	e.notify(stats)

	log.Debug().
		Int("open_events", stats.OpenEvents).
		Int("close_events", stats.CloseEvents).
		Int("active", agg.Active).
		Int("new_connections", stats.NewConnections).
		Dur("took", stats.Duration).
		Msg("Reconciliation pass complete")

	return e.lastOutput
}

// Shutdown persists the leaderboard one last time.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.leaderboard.Persist(); err != nil {
		log.Error().Err(err).Msg("Final leaderboard persistence failed")
		return
	}
	log.Info().Int("entries", e.leaderboard.Len()).Msg("Leaderboard persisted on shutdown")
}

func (e *Engine) notify(stats PassStats) {
	for _, obs := range e.observers {
		obs.PassCompleted(stats)
	}
}
