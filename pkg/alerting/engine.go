package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

const alertsCreatedMetric = "tripsynth.alerts.created"

// MetricSource supplies completed metrics for baselines and rolling stats.
// *telemetry.Collector satisfies it.
type MetricSource interface {
	Completed(category telemetry.Category, since time.Time) []telemetry.ExecutionMetric
}

// Engine evaluates completed metrics and owns the alert set
type Engine struct {
	cfg        Config
	targets    *telemetry.Targets
	source     MetricSource
	logger     telemetry.Logger
	now        func() time.Time
	dispatcher *Dispatcher
	created    metric.Int64Counter

	mu       sync.RWMutex
	alerts   []*Alert
	failures map[telemetry.Category]int
}

// Option configures an Engine
type Option func(*engineOptions)

type engineOptions struct {
	logger        telemetry.Logger
	now           func() time.Time
	dispatcher    *Dispatcher
	meterProvider metric.MeterProvider
}

// WithLogger sets the logger
func WithLogger(l telemetry.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithDispatcher forwards created alerts to the dispatcher
func WithDispatcher(d *Dispatcher) Option {
	return func(o *engineOptions) { o.dispatcher = d }
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *engineOptions) { o.meterProvider = mp }
}

// NewEngine creates an alerting engine. A nil targets table uses the
// telemetry defaults.
func NewEngine(cfg Config, targets *telemetry.Targets, source MetricSource, opts ...Option) *Engine {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = telemetry.NewNoopLogger()
	}
	if targets == nil {
		targets = telemetry.NewTargets(nil)
	}

	var meter metric.Meter
	if o.meterProvider != nil {
		meter = o.meterProvider.Meter("github.com/spawn-mcp/tripsynth/alerting")
	} else {
		meter = otel.Meter("github.com/spawn-mcp/tripsynth/alerting")
	}
	created, err := meter.Int64Counter(alertsCreatedMetric, metric.WithDescription("Alerts created by kind and severity"))
	if err != nil {
		created = nil
	}

	return &Engine{
		cfg:        cfg,
		targets:    targets,
		source:     source,
		logger:     o.logger,
		now:        o.now,
		dispatcher: o.dispatcher,
		created:    created,
		failures:   make(map[telemetry.Category]int),
	}
}

// OnComplete implements telemetry.Observer
func (e *Engine) OnComplete(ctx context.Context, m telemetry.ExecutionMetric) {
	e.Evaluate(ctx, m)
}

// proposal is a candidate alert before deduplication
type proposal struct {
	kind     Kind
	severity Severity
	message  string
	details  Details
}

// Evaluate checks one completed metric and the rolling statistics of its
// category and returns the alerts it created. Faults are logged, never
// propagated.
func (e *Engine) Evaluate(ctx context.Context, m telemetry.ExecutionMetric) (created []Alert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "alert evaluation failed",
				"err", errors.Newf(errors.ErrPanic, "%v", r),
				"metric_id", m.ID)
			created = nil
		}
	}()

	if !m.Completed() {
		return nil
	}

	recent := e.recent(m)
	var proposals []proposal
	proposals = append(proposals, e.checkTarget(m)...)
	proposals = append(proposals, e.checkBaseline(m, recent)...)
	proposals = append(proposals, e.checkFailures(m)...)
	proposals = append(proposals, e.checkMetadata(m)...)
	proposals = append(proposals, e.checkRolling(m, recent)...)
	if len(proposals) == 0 {
		return nil
	}

	created = e.raise(string(m.Category), proposals)
	for _, a := range created {
		e.logger.Warn(ctx, "alert raised",
			"alert_id", a.ID,
			"kind", string(a.Kind),
			"severity", string(a.Severity),
			"subject", a.Subject,
			"message", a.Message)
		if e.created != nil {
			e.created.Add(ctx, 1, metric.WithAttributes(
				attribute.String("kind", string(a.Kind)),
				attribute.String("severity", string(a.Severity))))
		}
		if e.dispatcher != nil {
			e.dispatcher.Enqueue(ctx, a)
		}
	}
	return created
}

// checkTarget flags a single operation far above its category target
func (e *Engine) checkTarget(m telemetry.ExecutionMetric) []proposal {
	target := e.targets.For(m.Category)
	limit := time.Duration(float64(target) * e.cfg.TargetMultiplier)
	if target <= 0 || m.Duration <= limit {
		return nil
	}
	return []proposal{{
		kind:     KindTargetExceeded,
		severity: SeverityHigh,
		message: fmt.Sprintf("%s took %s, over %.1fx its %s target",
			m.Category, m.Duration.Round(time.Millisecond), e.cfg.TargetMultiplier, target),
		details: Details{
			Observed:      ms(m.Duration),
			Threshold:     ms(target),
			Unit:          "ms",
			WindowStart:   m.StartTime,
			WindowEnd:     *m.EndTime,
			AffectedCount: 1,
		},
	}}
}

// recent fetches the category's metrics that ended within the wider of the
// baseline and stats windows. Both checks filter this one slice.
func (e *Engine) recent(m telemetry.ExecutionMetric) []telemetry.ExecutionMetric {
	if e.source == nil {
		return nil
	}
	window := e.cfg.BaselineWindow
	if e.cfg.StatsWindow > window {
		window = e.cfg.StatsWindow
	}
	return e.source.Completed(m.Category, m.EndTime.Add(-window))
}

// endedSince filters metrics that ended at or after start
func endedSince(metrics []telemetry.ExecutionMetric, start time.Time) []telemetry.ExecutionMetric {
	out := make([]telemetry.ExecutionMetric, 0, len(metrics))
	for _, m := range metrics {
		if !m.EndTime.Before(start) {
			out = append(out, m)
		}
	}
	return out
}

// checkBaseline compares the operation with the mean of the preceding
// window, excluding the operation itself.
func (e *Engine) checkBaseline(m telemetry.ExecutionMetric, recent []telemetry.ExecutionMetric) []proposal {
	end := *m.EndTime
	start := end.Add(-e.cfg.BaselineWindow)

	var total time.Duration
	var n int
	for _, prior := range recent {
		if prior.ID == m.ID || prior.EndTime.Before(start) || prior.EndTime.After(end) {
			continue
		}
		total += prior.Duration
		n++
	}
	if n < e.cfg.BaselineMinSamples || n == 0 {
		return nil
	}
	baseline := total / time.Duration(n)
	if baseline <= 0 || float64(m.Duration) < float64(baseline)*e.cfg.DegradationMultiplier {
		return nil
	}
	return []proposal{{
		kind:     KindPerformanceDegradation,
		severity: SeverityMedium,
		message: fmt.Sprintf("%s took %s against a recent baseline of %s",
			m.Category, m.Duration.Round(time.Millisecond), baseline.Round(time.Millisecond)),
		details: Details{
			Observed:      ms(m.Duration),
			Threshold:     ms(baseline) * e.cfg.DegradationMultiplier,
			Unit:          "ms",
			WindowStart:   start,
			WindowEnd:     end,
			AffectedCount: n,
		},
	}}
}

// checkFailures tracks the consecutive failure streak of the category
func (e *Engine) checkFailures(m telemetry.ExecutionMetric) []proposal {
	e.mu.Lock()
	if m.Success {
		e.failures[m.Category] = 0
	} else {
		e.failures[m.Category]++
	}
	streak := e.failures[m.Category]
	e.mu.Unlock()

	if streak < e.cfg.ConsecutiveFailures {
		return nil
	}
	return []proposal{{
		kind:     KindConsecutiveFailures,
		severity: SeverityHigh,
		message:  fmt.Sprintf("%s failed %d times in a row", m.Category, streak),
		details: Details{
			Observed:      float64(streak),
			Threshold:     float64(e.cfg.ConsecutiveFailures),
			Unit:          "failures",
			WindowEnd:     *m.EndTime,
			AffectedCount: streak,
		},
	}}
}

// checkMetadata checks the confidence, quality and cost the caller reported
func (e *Engine) checkMetadata(m telemetry.ExecutionMetric) []proposal {
	var out []proposal
	md := m.Metadata
	at := Details{WindowStart: m.StartTime, WindowEnd: *m.EndTime, AffectedCount: 1}

	if md.Confidence != nil && *md.Confidence < e.cfg.MinConfidence {
		d := at
		d.Observed, d.Threshold, d.Unit = *md.Confidence, e.cfg.MinConfidence, "ratio"
		out = append(out, proposal{
			kind:     KindLowConfidence,
			severity: SeverityMedium,
			message:  fmt.Sprintf("%s confidence %.2f is below %.2f", m.Category, *md.Confidence, e.cfg.MinConfidence),
			details:  d,
		})
	}
	if md.Quality != nil && *md.Quality < e.cfg.MinQuality {
		d := at
		d.Observed, d.Threshold, d.Unit = *md.Quality, e.cfg.MinQuality, "ratio"
		out = append(out, proposal{
			kind:     KindQualityDegradation,
			severity: SeverityMedium,
			message:  fmt.Sprintf("%s quality %.2f is below %.2f", m.Category, *md.Quality, e.cfg.MinQuality),
			details:  d,
		})
	}
	if md.EstimatedCost != nil && e.cfg.MaxCostPerRequest > 0 && *md.EstimatedCost > e.cfg.MaxCostPerRequest {
		d := at
		d.Observed, d.Threshold, d.Unit = *md.EstimatedCost, e.cfg.MaxCostPerRequest, "usd"
		out = append(out, proposal{
			kind:     KindHighCost,
			severity: SeverityLow,
			message:  fmt.Sprintf("%s cost $%.2f, over the $%.2f ceiling", m.Category, *md.EstimatedCost, e.cfg.MaxCostPerRequest),
			details:  d,
		})
	}
	return out
}

// checkRolling evaluates error rate and p95 over the stats window
func (e *Engine) checkRolling(m telemetry.ExecutionMetric, recent []telemetry.ExecutionMetric) []proposal {
	end := *m.EndTime
	start := end.Add(-e.cfg.StatsWindow)
	stats, ok := telemetry.ComputeStats(m.Category, e.cfg.StatsWindow, endedSince(recent, start))
	if !ok || stats.Count < e.cfg.StatsMinSamples {
		return nil
	}

	var out []proposal
	if stats.ErrorRate > e.cfg.MaxErrorRate {
		out = append(out, proposal{
			kind:     KindHighErrorRate,
			severity: SeverityHigh,
			message: fmt.Sprintf("%s error rate %.0f%% over the last %s",
				m.Category, stats.ErrorRate*100, e.cfg.StatsWindow),
			details: Details{
				Observed:      stats.ErrorRate,
				Threshold:     e.cfg.MaxErrorRate,
				Unit:          "ratio",
				WindowStart:   start,
				WindowEnd:     end,
				AffectedCount: stats.ErrorCount,
			},
		})
	}
	if target := e.targets.For(m.Category); target > 0 && stats.P95 > target {
		out = append(out, proposal{
			kind:     KindSlowResponse,
			severity: SeverityMedium,
			message: fmt.Sprintf("%s p95 %s exceeds its %s target",
				m.Category, stats.P95.Round(time.Millisecond), target),
			details: Details{
				Observed:      ms(stats.P95),
				Threshold:     ms(target),
				Unit:          "ms",
				WindowStart:   start,
				WindowEnd:     end,
				AffectedCount: stats.Count,
			},
		})
	}
	return out
}

// raise creates alerts for proposals that are not suppressed by an
// unresolved alert of the same kind and subject.
func (e *Engine) raise(subject string, proposals []proposal) []Alert {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Alert
	for _, p := range proposals {
		if e.suppressedLocked(p.kind, subject, now) {
			continue
		}
		a := &Alert{
			ID:              uuid.New().String(),
			Kind:            p.kind,
			Severity:        p.severity,
			Subject:         subject,
			Message:         p.message,
			Details:         p.details,
			Recommendations: Recommendations(p.kind),
			CreatedAt:       now,
		}
		e.alerts = append(e.alerts, a)
		out = append(out, *a)
	}
	e.gcLocked(now)
	return out
}

func (e *Engine) suppressedLocked(kind Kind, subject string, now time.Time) bool {
	since := now.Add(-e.cfg.dedupWindow(kind))
	for _, a := range e.alerts {
		if a.Resolved || a.Kind != kind || a.Subject != subject {
			continue
		}
		if !a.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}

// gcLocked drops alerts resolved longer ago than the retention. Resolved
// alerts are replaced rather than edited, so the log is rebuilt.
func (e *Engine) gcLocked(now time.Time) {
	cutoff := now.Add(-e.cfg.ResolvedRetention)
	expired := 0
	for _, a := range e.alerts {
		if a.Resolved && a.ResolvedAt.Before(cutoff) {
			expired++
		}
	}
	if expired == 0 {
		return
	}
	kept := make([]*Alert, 0, len(e.alerts)-expired)
	for _, a := range e.alerts {
		if a.Resolved && a.ResolvedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	e.alerts = kept
}

// Resolve marks an alert resolved. Resolving an already resolved alert is a
// no-op; an unknown id is an error.
func (e *Engine) Resolve(ctx context.Context, id string) (Alert, error) {
	now := e.now()

	e.mu.Lock()
	var found *Alert
	pos := -1
	for i, a := range e.alerts {
		if a.ID == id {
			found, pos = a, i
			break
		}
	}
	if found == nil {
		e.mu.Unlock()
		return Alert{}, errors.Newf(errors.ErrAlertNotFound, "alert %q not found", id).WithContext("alert_id", id)
	}
	if found.Resolved {
		e.mu.Unlock()
		return *found, nil
	}
	resolved := *found
	resolved.Resolved = true
	resolved.ResolvedAt = &now
	e.alerts[pos] = &resolved
	e.gcLocked(now)
	e.mu.Unlock()

	e.logger.Info(ctx, "alert resolved", "alert_id", id, "kind", string(resolved.Kind), "subject", resolved.Subject)
	return resolved, nil
}

// Get returns a retained alert by id
func (e *Engine) Get(id string) (Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, a := range e.alerts {
		if a.ID == id {
			return *a, true
		}
	}
	return Alert{}, false
}

// Active returns unresolved alerts, oldest first
func (e *Engine) Active() []Alert {
	return e.list(func(a *Alert, _ time.Time) bool { return !a.Resolved })
}

// All returns every retained alert, resolved ones included, oldest first.
// Alerts past their resolved retention are omitted even before collection.
func (e *Engine) All() []Alert {
	return e.list(func(a *Alert, cutoff time.Time) bool {
		return !a.Resolved || !a.ResolvedAt.Before(cutoff)
	})
}

func (e *Engine) list(keep func(a *Alert, cutoff time.Time) bool) []Alert {
	cutoff := e.now().Add(-e.cfg.ResolvedRetention)

	e.mu.RLock()
	out := make([]Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		if keep(a, cutoff) {
			out = append(out, *a)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ConsecutiveFailures returns the current failure streak of a category
func (e *Engine) ConsecutiveFailures(category telemetry.Category) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failures[category]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
