// Package monitor wires the telemetry collector and the alerting engine into
// the single service the rest of the system reports operations to.
package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// DefaultSnapshotWindow is the stats window used by ExportSnapshot
const DefaultSnapshotWindow = time.Hour

// CategorySnapshot is the exported view of one category
type CategorySnapshot struct {
	Stats             telemetry.Stats `json:"stats"`
	Target            time.Duration   `json:"target"`
	RecommendedTarget time.Duration   `json:"recommendedTarget"`
}

// Snapshot is a point-in-time export for dashboards and health checks
type Snapshot struct {
	GeneratedAt  time.Time                               `json:"generatedAt"`
	Window       time.Duration                           `json:"window"`
	Categories   map[telemetry.Category]CategorySnapshot `json:"categories"`
	Alerts       []alerting.Alert                        `json:"alerts"`
	ActiveAlerts int                                     `json:"activeAlerts"`
	InFlight     int                                     `json:"inFlight"`
	MetricCount  int                                     `json:"metricCount"`
}

// SnapshotStore persists exported snapshots
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

// Monitor is the telemetry and alerting service. Construct one per process
// and inject it where operations are reported.
type Monitor struct {
	collector  *telemetry.Collector
	engine     *alerting.Engine
	targets    *telemetry.Targets
	dispatcher *alerting.Dispatcher
	logger     telemetry.Logger
	now        func() time.Time
	window     time.Duration
}

// Config assembles a Monitor. A zero Alerting section uses the alerting
// defaults.
type Config struct {
	Alerting       alerting.Config
	Targets        map[telemetry.Category]time.Duration
	SnapshotWindow time.Duration
	Logger         telemetry.Logger
	Clock          func() time.Time
	Notifiers      []alerting.Notifier

	// CollectorOptions are applied after the logger and clock options
	CollectorOptions []telemetry.Option
	EngineOptions    []alerting.Option
}

// New builds the collector, engine and dispatcher and connects them. The
// engine observes every completed metric.
func New(cfg Config) *Monitor {
	if cfg.Alerting == (alerting.Config{}) {
		cfg.Alerting = alerting.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SnapshotWindow <= 0 {
		cfg.SnapshotWindow = DefaultSnapshotWindow
	}

	targets := telemetry.NewTargets(cfg.Targets)
	collector := telemetry.NewCollector(append([]telemetry.Option{
		telemetry.WithLogger(cfg.Logger),
		telemetry.WithClock(cfg.Clock),
	}, cfg.CollectorOptions...)...)

	dispatcher := alerting.NewDispatcher(cfg.Alerting.Dispatch, cfg.Logger, cfg.Notifiers...)
	engine := alerting.NewEngine(cfg.Alerting, targets, collector, append([]alerting.Option{
		alerting.WithLogger(cfg.Logger),
		alerting.WithClock(cfg.Clock),
		alerting.WithDispatcher(dispatcher),
	}, cfg.EngineOptions...)...)
	collector.AddObserver(engine)

	return &Monitor{
		collector:  collector,
		engine:     engine,
		targets:    targets,
		dispatcher: dispatcher,
		logger:     cfg.Logger,
		now:        cfg.Clock,
		window:     cfg.SnapshotWindow,
	}
}

// Start begins alert notification delivery
func (m *Monitor) Start(ctx context.Context) {
	m.dispatcher.Start(ctx)
}

// Close flushes queued notifications and stops delivery
func (m *Monitor) Close() {
	m.dispatcher.Close()
}

// Recorder returns the write side for components that report operations
func (m *Monitor) Recorder() telemetry.Recorder {
	return m.collector
}

// Collector returns the underlying collector
func (m *Monitor) Collector() *telemetry.Collector {
	return m.collector
}

// Engine returns the underlying alerting engine
func (m *Monitor) Engine() *alerting.Engine {
	return m.engine
}

// BeginOperation starts timing an operation
func (m *Monitor) BeginOperation(ctx context.Context, category telemetry.Category, instanceID string, tags map[string]string) string {
	return m.collector.Begin(ctx, category, instanceID, tags)
}

// EndOperation completes an operation started with BeginOperation
func (m *Monitor) EndOperation(ctx context.Context, id string, outcome telemetry.Outcome) {
	m.collector.End(ctx, id, outcome)
}

// RecordOperation records an operation the caller already timed
func (m *Monitor) RecordOperation(ctx context.Context, category telemetry.Category, instanceID string, d time.Duration, outcome telemetry.Outcome) string {
	return m.collector.RecordComplete(ctx, category, instanceID, d, outcome)
}

// GetStats returns statistics for a category over the trailing window
func (m *Monitor) GetStats(category telemetry.Category, window time.Duration) (telemetry.Stats, bool) {
	return m.collector.Stats(category, window)
}

// GetActiveAlerts returns unresolved alerts
func (m *Monitor) GetActiveAlerts() []alerting.Alert {
	return m.engine.Active()
}

// ResolveAlert marks an alert resolved
func (m *Monitor) ResolveAlert(ctx context.Context, id string) (alerting.Alert, error) {
	return m.engine.Resolve(ctx, id)
}

// ExportSnapshot captures stats for every category with retained metrics,
// every retained alert and collector counters.
func (m *Monitor) ExportSnapshot() Snapshot {
	s := Snapshot{
		GeneratedAt: m.now(),
		Window:      m.window,
		Categories:  make(map[telemetry.Category]CategorySnapshot),
		Alerts:      m.engine.All(),
		InFlight:    m.collector.InFlight(),
		MetricCount: m.collector.Len(),
	}

	categories := m.collector.Categories()
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, c := range categories {
		stats, ok := m.collector.Stats(c, m.window)
		if !ok {
			continue
		}
		s.Categories[c] = CategorySnapshot{
			Stats:             stats,
			Target:            m.targets.For(c),
			RecommendedTarget: m.targets.Recommend(c, stats, ok),
		}
	}
	for _, a := range s.Alerts {
		if !a.Resolved {
			s.ActiveAlerts++
		}
	}
	return s
}

// PersistSnapshot exports a snapshot and saves it to store
func (m *Monitor) PersistSnapshot(ctx context.Context, store SnapshotStore) (Snapshot, error) {
	s := m.ExportSnapshot()
	if err := store.SaveSnapshot(ctx, s); err != nil {
		m.logger.Error(ctx, "snapshot persist failed", "err", err)
		return s, err
	}
	m.logger.Info(ctx, "snapshot persisted", "alerts", len(s.Alerts), "metrics", s.MetricCount)
	return s, nil
}
