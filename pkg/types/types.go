package types

import (
	"time"
)

// Role identifies which generation role produced an output
type Role string

const (
	RoleArchitect  Role = "architect"
	RoleGatherer   Role = "gatherer"
	RoleSpecialist Role = "specialist"
	RolePutter     Role = "putter"
)

// Roles lists every role in pipeline order
var Roles = []Role{RoleArchitect, RoleGatherer, RoleSpecialist, RolePutter}

// RoleOutput is one variant of the role output union. Implementations are
// the four *Output structs in this package.
type RoleOutput interface {
	Role() Role
	GetDestination() string
}

// Duration is a trip length in days and nights
type Duration struct {
	Days   int `json:"days"`
	Nights int `json:"nights"`
}

// Travelers describes the traveling party
type Travelers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// Total returns the number of people the budget is split across
func (t Travelers) Total() int {
	return t.Adults + t.Children
}

// BudgetBreakdown splits a budget across the five spending categories
type BudgetBreakdown struct {
	Accommodation  float64 `json:"accommodation"`
	Transportation float64 `json:"transportation"`
	Activities     float64 `json:"activities"`
	Dining         float64 `json:"dining"`
	Miscellaneous  float64 `json:"miscellaneous"`
}

// Sum adds every category
func (b BudgetBreakdown) Sum() float64 {
	return b.Accommodation + b.Transportation + b.Activities + b.Dining + b.Miscellaneous
}

// ArchitectBudget is the architect's budget proposal
type ArchitectBudget struct {
	Total     float64         `json:"total"`
	Currency  string          `json:"currency"`
	Breakdown BudgetBreakdown `json:"breakdown"`
}

// ArchitectOutput is the overall trip shape proposed by the architect role
type ArchitectOutput struct {
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	Duration    Duration        `json:"duration"`
	Travelers   Travelers       `json:"travelers"`
	Overview    string          `json:"overview"`
	Highlights  []string        `json:"highlights"`
	Budget      ArchitectBudget `json:"budget"`
	Themes      []string        `json:"themes"`
	Confidence  float64         `json:"confidence"`
}

func (a *ArchitectOutput) Role() Role             { return RoleArchitect }
func (a *ArchitectOutput) GetDestination() string { return a.Destination }

// Candidate is a gathered option (attraction, hotel, restaurant, transport)
type Candidate struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	PriceTier   string   `json:"priceTier,omitempty"`
	Description string   `json:"description,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
}

// PracticalInfo holds destination facts found by the gatherer
type PracticalInfo struct {
	BestSeason string `json:"bestSeason"`
	Currency   string `json:"currency"`
	Language   string `json:"language"`
	Timezone   string `json:"timezone"`
}

// Source is a citation backing gathered content
type Source struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Credibility float64   `json:"credibility"`
	Freshness   time.Time `json:"freshness"`
}

// GathererOutput is the researched candidate pool
type GathererOutput struct {
	Destination    string        `json:"destination"`
	Attractions    []Candidate   `json:"attractions"`
	Accommodations []Candidate   `json:"accommodations"`
	Dining         []Candidate   `json:"dining"`
	Transportation []Candidate   `json:"transportation"`
	Practical      PracticalInfo `json:"practical"`
	Sources        []Source      `json:"sources"`
}

func (g *GathererOutput) Role() Role             { return RoleGatherer }
func (g *GathererOutput) GetDestination() string { return g.Destination }

// Insight is one piece of expert advice
type Insight struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// LocalExperience is a specialist-recommended activity
type LocalExperience struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Authenticity int      `json:"authenticity"` // 1-10
	Cost         float64  `json:"cost"`
	Duration     string   `json:"duration"`
	SuitableFor  []string `json:"suitableFor"`
	Tips         []string `json:"tips"`
}

// SeasonalConsideration groups advice for one season
type SeasonalConsideration struct {
	Season          string   `json:"season"`
	Considerations  []string `json:"considerations"`
	Recommendations []string `json:"recommendations"`
}

// CulturalNote is etiquette guidance rendered as do/don't lists
type CulturalNote struct {
	Topic       string   `json:"topic"`
	Description string   `json:"description"`
	Dos         []string `json:"dos"`
	Donts       []string `json:"donts"`
}

// HiddenGem is an off-the-beaten-path find
type HiddenGem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Why         string `json:"why,omitempty"`
}

// SpecialistOutput is local expertise for the destination
type SpecialistOutput struct {
	Destination      string                  `json:"destination"`
	Insights         []Insight               `json:"insights"`
	LocalExperiences []LocalExperience       `json:"localExperiences"`
	Seasonal         []SeasonalConsideration `json:"seasonal"`
	CulturalNotes    []CulturalNote          `json:"culturalNotes"`
	HiddenGems       []HiddenGem             `json:"hiddenGems"`
}

func (s *SpecialistOutput) Role() Role             { return RoleSpecialist }
func (s *SpecialistOutput) GetDestination() string { return s.Destination }

// Flexibility is how far the traveler lets the budget stretch
type Flexibility string

const (
	FlexibilityStrict   Flexibility = "strict"
	FlexibilityModerate Flexibility = "moderate"
	FlexibilityFlexible Flexibility = "flexible"
)

// BudgetPreference is the traveler's stated budget
type BudgetPreference struct {
	Amount      float64     `json:"amount"`
	Currency    string      `json:"currency"`
	Flexibility Flexibility `json:"flexibility"`
	Priorities  []string    `json:"priorities"`
}

// GroupComposition describes who is traveling
type GroupComposition struct {
	Adults   int   `json:"adults"`
	Children int   `json:"children"`
	Ages     []int `json:"ages,omitempty"`
}

// Preferences echoes the original request preferences
type Preferences struct {
	Budget        BudgetPreference `json:"budget"`
	TravelStyle   []string         `json:"travelStyle"`
	Interests     []string         `json:"interests"`
	Dietary       []string         `json:"dietary"`
	Accessibility []string         `json:"accessibility"`
	Group         GroupComposition `json:"group"`
}

// Constraints are literal date bounds with a flexibility window
type Constraints struct {
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	FlexibilityDays int       `json:"flexibilityDays"`
}

// Personalization carries explicit traveler directives
type Personalization struct {
	MustInclude     []string `json:"mustInclude"`
	Avoid           []string `json:"avoid"`
	SpecialRequests []string `json:"specialRequests"`
}

// PutterOutput is the formatter role's view of the request
type PutterOutput struct {
	Destination     string          `json:"destination"`
	Preferences     *Preferences    `json:"preferences"`
	Constraints     *Constraints    `json:"constraints"`
	Personalization Personalization `json:"personalization"`
}

func (p *PutterOutput) Role() Role             { return RolePutter }
func (p *PutterOutput) GetDestination() string { return p.Destination }

// Interests returns the declared interests, or nil without preferences
func (p *PutterOutput) Interests() []string {
	if p == nil || p.Preferences == nil {
		return nil
	}
	return p.Preferences.Interests
}
