package alerting

import (
	"time"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
)

// Config holds alert thresholds and windows
type Config struct {
	TargetMultiplier      float64       `yaml:"targetMultiplier" json:"targetMultiplier"`
	DegradationMultiplier float64       `yaml:"degradationMultiplier" json:"degradationMultiplier"`
	BaselineWindow        time.Duration `yaml:"baselineWindow" json:"baselineWindow"`
	BaselineMinSamples    int           `yaml:"baselineMinSamples" json:"baselineMinSamples"`
	ConsecutiveFailures   int           `yaml:"consecutiveFailures" json:"consecutiveFailures"`
	MinConfidence         float64       `yaml:"minConfidence" json:"minConfidence"`
	MinQuality            float64       `yaml:"minQuality" json:"minQuality"`
	MaxCostPerRequest     float64       `yaml:"maxCostPerRequest" json:"maxCostPerRequest"`

	StatsWindow     time.Duration `yaml:"statsWindow" json:"statsWindow"`
	StatsMinSamples int           `yaml:"statsMinSamples" json:"statsMinSamples"`
	MaxErrorRate    float64       `yaml:"maxErrorRate" json:"maxErrorRate"`

	DedupWindow            time.Duration `yaml:"dedupWindow" json:"dedupWindow"`
	PerformanceDedupWindow time.Duration `yaml:"performanceDedupWindow" json:"performanceDedupWindow"`
	ResolvedRetention      time.Duration `yaml:"resolvedRetention" json:"resolvedRetention"`

	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`
}

// DispatchConfig controls notification delivery
type DispatchConfig struct {
	QueueSize     int     `yaml:"queueSize" json:"queueSize"`
	RatePerSecond float64 `yaml:"ratePerSecond" json:"ratePerSecond"`
	Burst         int     `yaml:"burst" json:"burst"`
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		TargetMultiplier:      1.5,
		DegradationMultiplier: 1.5,
		BaselineWindow:        5 * time.Minute,
		BaselineMinSamples:    5,
		ConsecutiveFailures:   3,
		MinConfidence:         0.7,
		MinQuality:            0.6,
		MaxCostPerRequest:     0.50,

		StatsWindow:     5 * time.Minute,
		StatsMinSamples: 10,
		MaxErrorRate:    0.25,

		DedupWindow:            30 * time.Minute,
		PerformanceDedupWindow: 5 * time.Minute,
		ResolvedRetention:      24 * time.Hour,

		Dispatch: DispatchConfig{
			QueueSize:     256,
			RatePerSecond: 5,
			Burst:         10,
		},
	}
}

// Validate rejects configurations the engine cannot run with
func (c Config) Validate() error {
	switch {
	case c.TargetMultiplier <= 0:
		return errors.New(errors.ErrConfigInvalid, "targetMultiplier must be positive")
	case c.DegradationMultiplier <= 0:
		return errors.New(errors.ErrConfigInvalid, "degradationMultiplier must be positive")
	case c.BaselineWindow <= 0 || c.StatsWindow <= 0:
		return errors.New(errors.ErrConfigInvalid, "baseline and stats windows must be positive")
	case c.ConsecutiveFailures <= 0:
		return errors.New(errors.ErrConfigInvalid, "consecutiveFailures must be positive")
	case c.MaxErrorRate < 0 || c.MaxErrorRate > 1:
		return errors.Newf(errors.ErrConfigInvalid, "maxErrorRate must be within [0,1], got %v", c.MaxErrorRate)
	case c.DedupWindow < 0 || c.PerformanceDedupWindow < 0:
		return errors.New(errors.ErrConfigInvalid, "dedup windows must not be negative")
	case c.ResolvedRetention <= 0:
		return errors.New(errors.ErrConfigInvalid, "resolvedRetention must be positive")
	case c.Dispatch.QueueSize <= 0:
		return errors.New(errors.ErrConfigInvalid, "dispatch queueSize must be positive")
	case c.Dispatch.RatePerSecond <= 0 || c.Dispatch.Burst <= 0:
		return errors.New(errors.ErrConfigInvalid, "dispatch rate and burst must be positive")
	}
	return nil
}

func (c Config) dedupWindow(k Kind) time.Duration {
	if k.Performance() {
		return c.PerformanceDedupWindow
	}
	return c.DedupWindow
}
