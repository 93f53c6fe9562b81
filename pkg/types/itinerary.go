package types

import (
	"time"
)

// TripDuration is the reconciled length and dates of the trip
type TripDuration struct {
	Days      int       `json:"days"`
	Nights    int       `json:"nights"`
	StartDate time.Time `json:"startDate,omitempty"`
	EndDate   time.Time `json:"endDate,omitempty"`
}

// Activity is a scheduled or suggested thing to do
type Activity struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Cost         float64  `json:"cost,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Tips         []string `json:"tips,omitempty"`
	Authenticity int      `json:"authenticity,omitempty"`
}

// Meal is one planned meal
type Meal struct {
	Venue string `json:"venue"`
	Note  string `json:"note,omitempty"`
}

// Meals is the breakfast/lunch/dinner triple for a day
type Meals struct {
	Breakfast Meal `json:"breakfast"`
	Lunch     Meal `json:"lunch"`
	Dinner    Meal `json:"dinner"`
}

// DailyPlan is one day of the itinerary
type DailyPlan struct {
	Day        int        `json:"day"`
	Date       time.Time  `json:"date,omitempty"`
	Title      string     `json:"title"`
	Activities []Activity `json:"activities"`
	Meals      Meals      `json:"meals"`
	Notes      string     `json:"notes,omitempty"`
}

// Accommodation is a lodging option
type Accommodation struct {
	Name      string   `json:"name"`
	Type      string   `json:"type,omitempty"`
	PriceTier string   `json:"priceTier,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
}

// TransportOption is a way of getting around
type TransportOption struct {
	Name      string   `json:"name"`
	Mode      string   `json:"mode,omitempty"`
	PriceTier string   `json:"priceTier,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
}

// DiningOption is a restaurant or food experience
type DiningOption struct {
	Name      string   `json:"name"`
	Cuisine   string   `json:"cuisine,omitempty"`
	PriceTier string   `json:"priceTier,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
}

// Budget is the itinerary budget. Total may diverge from Breakdown.Sum()
// after the flexibility adjustment.
type Budget struct {
	Total     float64         `json:"total"`
	Currency  string          `json:"currency"`
	Breakdown BudgetBreakdown `json:"breakdown"`
	PerPerson *float64        `json:"perPerson,omitempty"`
}

// Tip is traveler-facing advice
type Tip struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// GenerationMetadata stamps how and when an itinerary was produced
type GenerationMetadata struct {
	GeneratedAt    time.Time     `json:"generatedAt"`
	Version        string        `json:"version"`
	Confidence     float64       `json:"confidence"`
	Quality        float64       `json:"quality"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// Itinerary is the canonical merged travel plan
type Itinerary struct {
	Title          string             `json:"title"`
	Destination    string             `json:"destination"`
	Duration       TripDuration       `json:"duration"`
	Travelers      Travelers          `json:"travelers"`
	Overview       string             `json:"overview"`
	Highlights     []string           `json:"highlights"`
	DailyPlans     []DailyPlan        `json:"dailyPlans"`
	Accommodations []Accommodation    `json:"accommodations"`
	Transportation []TransportOption  `json:"transportation"`
	Activities     []Activity         `json:"activities"`
	Dining         []DiningOption     `json:"dining"`
	Budget         Budget             `json:"budget"`
	Tips           []Tip              `json:"tips"`
	Notes          string             `json:"notes"`
	Metadata       GenerationMetadata `json:"metadata"`
}

// ResultMetadata describes what fed a synthesis run
type ResultMetadata struct {
	Contributors    []Role `json:"contributors"`
	SourceCount     int    `json:"sourceCount"`
	PipelineVersion string `json:"pipelineVersion"`
}

// SynthesisResult is the outcome of one synthesis call. Itinerary is
// non-nil iff Success.
type SynthesisResult struct {
	Success        bool           `json:"success"`
	Itinerary      *Itinerary     `json:"itinerary,omitempty"`
	Confidence     float64        `json:"confidence"`
	Quality        float64        `json:"quality"`
	ProcessingTime time.Duration  `json:"processingTime"`
	Errors         []string       `json:"errors"`
	Warnings       []string       `json:"warnings"`
	Metadata       ResultMetadata `json:"metadata"`
}
