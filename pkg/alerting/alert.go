package alerting

import (
	"time"
)

// Kind classifies what condition raised an alert
type Kind string

const (
	KindSlowResponse           Kind = "slow-response"
	KindHighErrorRate          Kind = "high-error-rate"
	KindPerformanceDegradation Kind = "performance-degradation"
	KindTargetExceeded         Kind = "target-exceeded"
	KindQualityDegradation     Kind = "quality-degradation"
	KindLowConfidence          Kind = "low-confidence"
	KindConsecutiveFailures    Kind = "consecutive-failures"
	KindHighCost               Kind = "high-cost"
)

// Kinds lists every alert kind
var Kinds = []Kind{
	KindSlowResponse,
	KindHighErrorRate,
	KindPerformanceDegradation,
	KindTargetExceeded,
	KindQualityDegradation,
	KindLowConfidence,
	KindConsecutiveFailures,
	KindHighCost,
}

// Performance reports whether the kind is a pure timing alert. Timing
// alerts use the shorter suppression window.
func (k Kind) Performance() bool {
	switch k {
	case KindSlowResponse, KindPerformanceDegradation, KindTargetExceeded:
		return true
	default:
		return false
	}
}

// Severity ranks alerts
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Details quantifies the condition behind an alert
type Details struct {
	Observed      float64   `json:"observed"`
	Threshold     float64   `json:"threshold"`
	Unit          string    `json:"unit"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
	AffectedCount int       `json:"affectedCount"`
}

// Alert is a deduplicated, resolvable notification. Only the engine writes
// Resolved and ResolvedAt.
type Alert struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	Severity        Severity   `json:"severity"`
	Subject         string     `json:"subject"`
	Message         string     `json:"message"`
	Details         Details    `json:"details"`
	Recommendations []string   `json:"recommendations"`
	CreatedAt       time.Time  `json:"createdAt"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}

var recommendations = map[Kind][]string{
	KindSlowResponse: {
		"Check upstream provider latency for this operation",
		"Consider caching repeated requests",
		"Review the configured target for this category",
	},
	KindHighErrorRate: {
		"Inspect recent error kinds for a common cause",
		"Verify provider credentials and quotas",
		"Enable fallbacks for the failing dependency",
	},
	KindPerformanceDegradation: {
		"Compare with recent deployments or configuration changes",
		"Check provider status pages for incidents",
		"Reduce request concurrency until latency recovers",
	},
	KindTargetExceeded: {
		"Investigate the slow operation instance",
		"Lower request size or split the work",
		"Raise the timeout only if the new latency is expected",
	},
	KindQualityDegradation: {
		"Review role outputs feeding recent syntheses",
		"Check that gatherer sources are being returned",
		"Revisit prompt changes that affect completeness",
	},
	KindLowConfidence: {
		"Review architect confidence for recent requests",
		"Provide richer traveler preferences",
		"Verify the gatherer returns source citations",
	},
	KindConsecutiveFailures: {
		"Check dependency health immediately",
		"Verify credentials and network reachability",
		"Pause traffic to the failing operation if failures continue",
	},
	KindHighCost: {
		"Review model selection for this operation",
		"Enable response caching",
		"Trim prompt and context size",
	},
}

// Recommendations returns the remediation steps for a kind
func Recommendations(k Kind) []string {
	return append([]string(nil), recommendations[k]...)
}
