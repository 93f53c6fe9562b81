package synthesis

import (
	"math"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// PipelineVersion is stamped on every itinerary
const PipelineVersion = "1.0.0"

// ConfidenceWeights is the confidence scoring table. Role weights must sum
// to 1.0; each non-architect role contributes one of two fixed signals
// depending on whether it produced supporting evidence.
type ConfidenceWeights struct {
	Architect  float64 `yaml:"architect" json:"architect"`
	Gatherer   float64 `yaml:"gatherer" json:"gatherer"`
	Specialist float64 `yaml:"specialist" json:"specialist"`
	Putter     float64 `yaml:"putter" json:"putter"`

	GathererWithSources       float64 `yaml:"gathererWithSources" json:"gathererWithSources"`
	GathererWithoutSources    float64 `yaml:"gathererWithoutSources" json:"gathererWithoutSources"`
	SpecialistWithInsights    float64 `yaml:"specialistWithInsights" json:"specialistWithInsights"`
	SpecialistWithoutInsights float64 `yaml:"specialistWithoutInsights" json:"specialistWithoutInsights"`
	PutterWithPreferences     float64 `yaml:"putterWithPreferences" json:"putterWithPreferences"`
	PutterWithoutPreferences  float64 `yaml:"putterWithoutPreferences" json:"putterWithoutPreferences"`
}

// DefaultConfidenceWeights returns the standard weight table
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Architect:  0.4,
		Gatherer:   0.3,
		Specialist: 0.2,
		Putter:     0.1,

		GathererWithSources:       0.9,
		GathererWithoutSources:    0.7,
		SpecialistWithInsights:    0.85,
		SpecialistWithoutInsights: 0.6,
		PutterWithPreferences:     0.95,
		PutterWithoutPreferences:  0.8,
	}
}

// QualityRubric assigns points to each quality criterion. The score is the
// achieved share of the total.
type QualityRubric struct {
	// completeness
	Overview   float64 `yaml:"overview" json:"overview"`
	Highlights float64 `yaml:"highlights" json:"highlights"`
	DailyPlans float64 `yaml:"dailyPlans" json:"dailyPlans"`
	Budget     float64 `yaml:"budget" json:"budget"`

	// personalization
	InterestMatch float64 `yaml:"interestMatch" json:"interestMatch"`

	// practicality
	Accommodations float64 `yaml:"accommodations" json:"accommodations"`
	Transportation float64 `yaml:"transportation" json:"transportation"`
	Dining         float64 `yaml:"dining" json:"dining"`

	// polish
	Tips                float64 `yaml:"tips" json:"tips"`
	HighConfidence      float64 `yaml:"highConfidence" json:"highConfidence"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold" json:"confidenceThreshold"`
}

// DefaultQualityRubric returns the 100 point rubric
func DefaultQualityRubric() QualityRubric {
	return QualityRubric{
		Overview:   10,
		Highlights: 10,
		DailyPlans: 10,
		Budget:     10,

		InterestMatch: 30,

		Accommodations: 7,
		Transportation: 7,
		Dining:         6,

		Tips:                5,
		HighConfidence:      5,
		ConfidenceThreshold: 0.8,
	}
}

// Total returns the maximum achievable points
func (r QualityRubric) Total() float64 {
	return r.Overview + r.Highlights + r.DailyPlans + r.Budget + r.InterestMatch +
		r.Accommodations + r.Transportation + r.Dining + r.Tips + r.HighConfidence
}

// Config holds the coordinator settings
type Config struct {
	MinArchitectConfidence float64 `yaml:"minArchitectConfidence" json:"minArchitectConfidence"`
	MaxDailyPlans          int     `yaml:"maxDailyPlans" json:"maxDailyPlans"`
	MaxActivitiesPerDay    int     `yaml:"maxActivitiesPerDay" json:"maxActivitiesPerDay"`
	DefaultCurrency        string  `yaml:"defaultCurrency" json:"defaultCurrency"`
	DefaultAdults          int     `yaml:"defaultAdults" json:"defaultAdults"`

	// BudgetMultipliers scale the budget total by declared flexibility
	BudgetMultipliers map[types.Flexibility]float64 `yaml:"budgetMultipliers" json:"budgetMultipliers"`

	Weights ConfidenceWeights `yaml:"weights" json:"weights"`
	Rubric  QualityRubric     `yaml:"rubric" json:"rubric"`
}

// DefaultConfig returns the standard coordinator configuration
func DefaultConfig() Config {
	return Config{
		MinArchitectConfidence: 0.7,
		MaxDailyPlans:          14,
		MaxActivitiesPerDay:    4,
		DefaultCurrency:        "USD",
		DefaultAdults:          2,
		BudgetMultipliers: map[types.Flexibility]float64{
			types.FlexibilityStrict:   1.0,
			types.FlexibilityModerate: 1.05,
			types.FlexibilityFlexible: 1.1,
		},
		Weights: DefaultConfidenceWeights(),
		Rubric:  DefaultQualityRubric(),
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c Config) Validate() error {
	if c.MinArchitectConfidence < 0 || c.MinArchitectConfidence > 1 {
		return errors.Newf(errors.ErrConfigInvalid, "minArchitectConfidence must be within [0,1], got %v", c.MinArchitectConfidence)
	}
	if c.MaxDailyPlans <= 0 {
		return errors.Newf(errors.ErrConfigInvalid, "maxDailyPlans must be positive, got %d", c.MaxDailyPlans)
	}
	if c.MaxActivitiesPerDay <= 0 {
		return errors.Newf(errors.ErrConfigInvalid, "maxActivitiesPerDay must be positive, got %d", c.MaxActivitiesPerDay)
	}
	if c.DefaultAdults <= 0 {
		return errors.Newf(errors.ErrConfigInvalid, "defaultAdults must be positive, got %d", c.DefaultAdults)
	}
	w := c.Weights
	if sum := w.Architect + w.Gatherer + w.Specialist + w.Putter; math.Abs(sum-1) > 1e-6 {
		return errors.Newf(errors.ErrConfigInvalid, "confidence weights must sum to 1.0, got %.4f", sum)
	}
	if c.Rubric.Total() <= 0 {
		return errors.New(errors.ErrConfigInvalid, "quality rubric must award at least one point")
	}
	for f, m := range c.BudgetMultipliers {
		if m <= 0 {
			return errors.Newf(errors.ErrConfigInvalid, "budget multiplier for %q must be positive", f)
		}
	}
	return nil
}

func (c Config) multiplier(f types.Flexibility) float64 {
	if m, ok := c.BudgetMultipliers[f]; ok {
		return m
	}
	return 1.0
}
