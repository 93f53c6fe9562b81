package telemetry

import (
	"sync"
	"time"
)

// DefaultTarget applies to categories without an explicit target
const DefaultTarget = 30 * time.Second

// DefaultTargets defines the expected duration of each well known category
var DefaultTargets = map[Category]time.Duration{
	CategorySynthesis:         5 * time.Second,
	CategoryAgentCall:         20 * time.Second,
	CategorySearchQuery:       3 * time.Second,
	CategoryContentExtraction: 10 * time.Second,
	CategoryVectorSearch:      2 * time.Second,
	CategoryFormatOutput:      1 * time.Second,
}

// Targets holds per-category duration targets
type Targets struct {
	fallback time.Duration
	targets  map[Category]time.Duration
	mu       sync.RWMutex
}

// NewTargets creates a target table seeded with DefaultTargets. Overrides
// replace individual entries.
func NewTargets(overrides map[Category]time.Duration) *Targets {
	t := &Targets{
		fallback: DefaultTarget,
		targets:  make(map[Category]time.Duration, len(DefaultTargets)+len(overrides)),
	}
	for c, d := range DefaultTargets {
		t.targets[c] = d
	}
	for c, d := range overrides {
		if d > 0 {
			t.targets[c] = d
		}
	}
	return t
}

// Set sets the target for a category
func (t *Targets) Set(category Category, target time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[category] = target
}

// SetFallback sets the target used for unknown categories
func (t *Targets) SetFallback(target time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = target
}

// For returns the target for a category
func (t *Targets) For(category Category) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if d, ok := t.targets[category]; ok {
		return d
	}
	return t.fallback
}

// All returns a copy of the configured targets
func (t *Targets) All() map[Category]time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Category]time.Duration, len(t.targets))
	for c, d := range t.targets {
		out[c] = d
	}
	return out
}

// Recommend suggests a target from observed statistics: p99 plus 20%, or the
// configured target when nothing has been observed.
func (t *Targets) Recommend(category Category, stats Stats, ok bool) time.Duration {
	if !ok || stats.Count == 0 || stats.P99 == 0 {
		return t.For(category)
	}
	return time.Duration(float64(stats.P99) * 1.2)
}
