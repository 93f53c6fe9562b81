package telemetry

import (
	"context"
	"time"
)

// Category names a kind of timed operation. The set is open; the constants
// below are the categories the synthesis pipeline and its callers report.
type Category string

const (
	CategorySynthesis         Category = "synthesis"
	CategoryAgentCall         Category = "agent-call"
	CategorySearchQuery       Category = "search-query"
	CategoryContentExtraction Category = "content-extraction"
	CategoryVectorSearch      Category = "vector-search"
	CategoryFormatOutput      Category = "format-output"
)

// Metadata is the caller-supplied bag attached to a metric. Pointer fields
// distinguish "not reported" from zero.
type Metadata struct {
	UserID        string            `json:"userId,omitempty"`
	SessionID     string            `json:"sessionId,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	ResultCount   *int              `json:"resultCount,omitempty"`
	CacheHit      *bool             `json:"cacheHit,omitempty"`
	RetryCount    *int              `json:"retryCount,omitempty"`
	Confidence    *float64          `json:"confidence,omitempty"`
	Quality       *float64          `json:"quality,omitempty"`
	EstimatedCost *float64          `json:"estimatedCost,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Merge returns m overlaid with every field set in o
func (m Metadata) Merge(o Metadata) Metadata {
	if o.UserID != "" {
		m.UserID = o.UserID
	}
	if o.SessionID != "" {
		m.SessionID = o.SessionID
	}
	if o.Provider != "" {
		m.Provider = o.Provider
	}
	if o.ResultCount != nil {
		m.ResultCount = o.ResultCount
	}
	if o.CacheHit != nil {
		m.CacheHit = o.CacheHit
	}
	if o.RetryCount != nil {
		m.RetryCount = o.RetryCount
	}
	if o.Confidence != nil {
		m.Confidence = o.Confidence
	}
	if o.Quality != nil {
		m.Quality = o.Quality
	}
	if o.EstimatedCost != nil {
		m.EstimatedCost = o.EstimatedCost
	}
	m.Extra = mergeTags(m.Extra, o.Extra)
	return m
}

// ExecutionMetric is one timed, outcome-tagged operation. EndTime is nil
// until the operation completes.
type ExecutionMetric struct {
	ID         string            `json:"id"`
	Category   Category          `json:"category"`
	InstanceID string            `json:"instanceId"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    *time.Time        `json:"endTime,omitempty"`
	Duration   time.Duration     `json:"duration"`
	Success    bool              `json:"success"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Metadata   Metadata          `json:"metadata"`
}

// Completed reports whether the operation has ended
func (m ExecutionMetric) Completed() bool {
	return m.EndTime != nil
}

// Outcome is what a caller reports when an operation ends
type Outcome struct {
	Success   bool
	ErrorKind string
	Tags      map[string]string
	Metadata  Metadata
}

// Recorder is the write side of the collector, injected into code that
// reports operations. Every method is a no-op for an empty id.
type Recorder interface {
	Begin(ctx context.Context, category Category, instanceID string, tags map[string]string) string
	End(ctx context.Context, id string, outcome Outcome)
	RecordComplete(ctx context.Context, category Category, instanceID string, d time.Duration, outcome Outcome) string
}

// Observer is notified of every completed metric
type Observer interface {
	OnComplete(ctx context.Context, m ExecutionMetric)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, m ExecutionMetric)

// OnComplete calls f
func (f ObserverFunc) OnComplete(ctx context.Context, m ExecutionMetric) {
	f(ctx, m)
}

// mergeTags returns a new map holding base overlaid with extra. Maps held by
// stored metrics are never written after they are assigned.
func mergeTags(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
