package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// DefaultRetention is how long metrics are kept after they start
const DefaultRetention = 24 * time.Hour

// Collector records ExecutionMetrics in a log ordered by start time and
// indexed by id. Writes trim the prefix that fell behind the retention
// horizon, so eviction costs only the evicted entries.
type Collector struct {
	enabled   bool
	retention time.Duration
	now       func() time.Time
	logger    Logger
	inst      *instruments

	mu      sync.RWMutex
	entries []*ExecutionMetric
	index   map[string]*ExecutionMetric
	// longest completed duration seen; bounds how far back a metric ending
	// after a given time can have started
	maxDuration time.Duration

	obsMu     sync.RWMutex
	observers []Observer
}

// Option configures a Collector
type Option func(*collectorOptions)

type collectorOptions struct {
	disabled      bool
	retention     time.Duration
	now           func() time.Time
	logger        Logger
	meterProvider metric.MeterProvider
	observers     []Observer
}

// WithDisabled turns every collector call into a no-op
func WithDisabled() Option {
	return func(o *collectorOptions) { o.disabled = true }
}

// WithRetention sets the retention horizon
func WithRetention(d time.Duration) Option {
	return func(o *collectorOptions) { o.retention = d }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(o *collectorOptions) { o.now = now }
}

// WithLogger sets the logger
func WithLogger(l Logger) Option {
	return func(o *collectorOptions) { o.logger = l }
}

// WithMeterProvider sets the OpenTelemetry meter provider. The global
// provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *collectorOptions) { o.meterProvider = mp }
}

// WithObserver registers an observer at construction
func WithObserver(obs Observer) Option {
	return func(o *collectorOptions) { o.observers = append(o.observers, obs) }
}

// NewCollector creates a collector
func NewCollector(opts ...Option) *Collector {
	o := collectorOptions{retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retention <= 0 {
		o.retention = DefaultRetention
	}
	if o.logger == nil {
		o.logger = NewNoopLogger()
	}
	return &Collector{
		enabled:   !o.disabled,
		retention: o.retention,
		now:       o.now,
		logger:    o.logger,
		inst:      newInstruments(o.meterProvider),
		index:     make(map[string]*ExecutionMetric),
		observers: o.observers,
	}
}

// Enabled reports whether the collector records anything
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Retention returns the retention horizon
func (c *Collector) Retention() time.Duration {
	return c.retention
}

// AddObserver registers an observer for completed metrics
func (c *Collector) AddObserver(obs Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, obs)
}

// Begin starts an operation and returns its metric id. It returns "" when
// the collector is disabled.
func (c *Collector) Begin(ctx context.Context, category Category, instanceID string, tags map[string]string) string {
	if !c.enabled {
		return ""
	}
	now := c.now()
	m := &ExecutionMetric{
		ID:         uuid.New().String(),
		Category:   category,
		InstanceID: instanceID,
		StartTime:  now,
		Tags:       mergeTags(tags, nil),
	}

	c.mu.Lock()
	c.insertLocked(m)
	c.evictLocked(now)
	c.mu.Unlock()

	c.logger.Debug(ctx, "operation started", "category", string(category), "metric_id", m.ID, "instance_id", instanceID)
	return m.ID
}

// End completes an operation. Unknown, evicted and already completed ids are
// ignored.
func (c *Collector) End(ctx context.Context, id string, outcome Outcome) {
	if id == "" || !c.enabled {
		return
	}
	now := c.now()

	c.mu.Lock()
	stored, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn(ctx, "end for unknown operation", "metric_id", id)
		return
	}
	if stored.Completed() {
		c.mu.Unlock()
		c.logger.Warn(ctx, "operation already completed", "metric_id", id)
		return
	}
	stored.EndTime = &now
	stored.Duration = now.Sub(stored.StartTime)
	stored.Success = outcome.Success
	stored.ErrorKind = outcome.ErrorKind
	stored.Tags = mergeTags(stored.Tags, outcome.Tags)
	stored.Metadata = stored.Metadata.Merge(outcome.Metadata)
	if stored.Duration > c.maxDuration {
		c.maxDuration = stored.Duration
	}
	done := *stored
	c.evictLocked(now)
	c.mu.Unlock()

	c.complete(ctx, done)
}

// RecordComplete records an operation that was measured by the caller and
// returns its metric id.
func (c *Collector) RecordComplete(ctx context.Context, category Category, instanceID string, d time.Duration, outcome Outcome) string {
	if !c.enabled {
		return ""
	}
	now := c.now()
	m := &ExecutionMetric{
		ID:         uuid.New().String(),
		Category:   category,
		InstanceID: instanceID,
		StartTime:  now.Add(-d),
		EndTime:    &now,
		Duration:   d,
		Success:    outcome.Success,
		ErrorKind:  outcome.ErrorKind,
		Tags:       mergeTags(outcome.Tags, nil),
		Metadata:   Metadata{}.Merge(outcome.Metadata),
	}

	c.mu.Lock()
	c.insertLocked(m)
	if d > c.maxDuration {
		c.maxDuration = d
	}
	done := *m
	c.evictLocked(now)
	c.mu.Unlock()

	c.complete(ctx, done)
	return m.ID
}

// Get returns a metric by id
func (c *Collector) Get(id string) (ExecutionMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.index[id]
	if !ok {
		return ExecutionMetric{}, false
	}
	return *m, true
}

// Completed returns completed metrics of a category that ended at or after
// since, in start-time order. An empty category matches every category.
func (c *Collector) Completed(category Category, since time.Time) []ExecutionMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ExecutionMetric
	for _, m := range c.entries[c.searchLocked(since.Add(-c.maxDuration)):] {
		if !m.Completed() || m.EndTime.Before(since) {
			continue
		}
		if category != "" && m.Category != category {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// Stats aggregates completed metrics of a category over the trailing window.
// It returns false when no metric falls in the window.
func (c *Collector) Stats(category Category, window time.Duration) (Stats, bool) {
	return ComputeStats(category, window, c.Completed(category, c.now().Add(-window)))
}

// Categories returns every category with a retained metric
func (c *Collector) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[Category]struct{})
	var out []Category
	for _, m := range c.entries {
		if _, ok := seen[m.Category]; ok {
			continue
		}
		seen[m.Category] = struct{}{}
		out = append(out, m.Category)
	}
	return out
}

// InFlight counts operations that began but have not ended
func (c *Collector) InFlight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.entries {
		if !m.Completed() {
			n++
		}
	}
	return n
}

// Len returns the number of retained metrics
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// searchLocked returns the position of the first entry starting at or after t
func (c *Collector) searchLocked(t time.Time) int {
	return sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].StartTime.Before(t)
	})
}

// insertLocked keeps entries ordered by start time. Begin always appends;
// RecordComplete back-dates its start and may land a short way from the end.
func (c *Collector) insertLocked(m *ExecutionMetric) {
	c.index[m.ID] = m
	n := len(c.entries)
	if n == 0 || !m.StartTime.Before(c.entries[n-1].StartTime) {
		c.entries = append(c.entries, m)
		return
	}
	pos := sort.Search(n, func(i int) bool {
		return c.entries[i].StartTime.After(m.StartTime)
	})
	c.entries = append(c.entries, nil)
	copy(c.entries[pos+1:], c.entries[pos:n])
	c.entries[pos] = m
}

// evictLocked drops the prefix of metrics that started before the retention
// horizon. Trimmed slots are cleared so the backing array does not pin them;
// the next growing append reallocates only the live entries.
func (c *Collector) evictLocked(now time.Time) {
	if len(c.entries) == 0 || !c.entries[0].StartTime.Before(now.Add(-c.retention)) {
		return
	}
	n := c.searchLocked(now.Add(-c.retention))
	for i := 0; i < n; i++ {
		delete(c.index, c.entries[i].ID)
		c.entries[i] = nil
	}
	c.entries = c.entries[n:]
	if len(c.entries) == 0 {
		c.entries = nil
	}
}

// complete publishes a completed metric to OTEL and the observers. Observer
// panics are logged and swallowed.
func (c *Collector) complete(ctx context.Context, m ExecutionMetric) {
	c.inst.record(ctx, m.Category, m.Success, m.Duration)
	c.logger.Debug(ctx, "operation completed",
		"category", string(m.Category),
		"metric_id", m.ID,
		"success", m.Success,
		"duration_ms", m.Duration.Milliseconds())

	c.obsMu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.obsMu.RUnlock()

	for _, obs := range observers {
		c.notify(ctx, obs, m)
	}
}

func (c *Collector) notify(ctx context.Context, obs Observer, m ExecutionMetric) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "metric observer panicked", "err", fmt.Errorf("%v", r), "metric_id", m.ID)
		}
	}()
	obs.OnComplete(ctx, m)
}
