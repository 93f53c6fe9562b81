package synthesis

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ptr[T any](v T) *T { return &v }

// fixture returns a consistent quadruple of role outputs for dest
func fixture(dest string) (*types.ArchitectOutput, *types.GathererOutput, *types.SpecialistOutput, *types.PutterOutput) {
	a := &types.ArchitectOutput{
		Title:       "Kyoto Discovery",
		Destination: dest,
		Duration:    types.Duration{Days: 5, Nights: 4},
		Travelers:   types.Travelers{Adults: 2},
		Overview:    "Temples, gardens and food in the old capital.",
		Highlights:  []string{"Fushimi Inari at sunrise", "Nishiki market"},
		Budget: types.ArchitectBudget{
			Total:    4000,
			Currency: "USD",
			Breakdown: types.BudgetBreakdown{
				Accommodation:  1500,
				Transportation: 500,
				Activities:     800,
				Dining:         900,
				Miscellaneous:  300,
			},
		},
		Themes:     []string{"culture", "food"},
		Confidence: 0.95,
	}
	g := &types.GathererOutput{
		Destination: dest,
		Attractions: []types.Candidate{
			{Name: "Fushimi Inari Taisha", Category: "shrine", Rating: ptr(4.8)},
			{Name: "Kinkaku-ji", Category: "temple", Cost: ptr(5.0)},
			{Name: "Philosopher's Path", Category: "walk"},
		},
		Accommodations: []types.Candidate{{Name: "Hotel Kanra", Category: "boutique", PriceTier: "$$$"}},
		Dining:         []types.Candidate{{Name: "Shigetsu", Category: "shojin ryori"}, {Name: "Ippudo", Category: "ramen"}},
		Transportation: []types.Candidate{{Name: "ICOCA card", Category: "transit"}},
		Practical:      types.PracticalInfo{BestSeason: "spring", Currency: "JPY", Language: "Japanese", Timezone: "Asia/Tokyo"},
		Sources: []types.Source{
			{URL: "https://example.com/a", Title: "A", Credibility: 0.9},
			{URL: "https://example.com/b", Title: "B", Credibility: 0.8},
			{URL: "https://example.com/c", Title: "C", Credibility: 0.7},
		},
	}
	s := &types.SpecialistOutput{
		Destination: dest,
		Insights: []types.Insight{
			{Category: "tips", Title: "Go early", Body: "Popular shrines are quiet before 8am.", Priority: "high"},
			{Category: "history", Title: "Old capital", Body: "Kyoto was the capital for a millennium.", Priority: "low"},
		},
		LocalExperiences: []types.LocalExperience{
			{Name: "Zen meditation at Kennin-ji", Authenticity: 9, SuitableFor: []string{"temples", "wellness"}},
			{Name: "Nishiki market food tour", Authenticity: 8, SuitableFor: []string{"food", "markets"}},
			{Name: "Tea ceremony in Gion", Authenticity: 9, SuitableFor: []string{"culture"}},
			{Name: "Arashiyama bamboo hike", Authenticity: 6, SuitableFor: []string{"hiking", "nature"}},
			{Name: "Pontocho izakaya crawl", Authenticity: 7, SuitableFor: []string{"nightlife", "street food"}},
			{Name: "Kiyomizu-dera at dawn", Authenticity: 8, SuitableFor: []string{"Temples"}},
		},
		Seasonal: []types.SeasonalConsideration{
			{Season: "Spring", Recommendations: []string{"Book early for cherry blossoms", "Visit the Philosopher's Path"}},
		},
		CulturalNotes: []types.CulturalNote{
			{Topic: "Shrine etiquette", Description: "Purify hands at the basin.", Dos: []string{"Bow at the gate"}, Donts: []string{"Walk in the center of the path"}},
		},
		HiddenGems: []types.HiddenGem{{Name: "Honen-in", Description: "Moss garden temple", Why: "Few tourists"}},
	}
	p := &types.PutterOutput{
		Destination: dest,
		Preferences: &types.Preferences{
			Budget:      types.BudgetPreference{Amount: 4000, Currency: "USD", Flexibility: types.FlexibilityModerate},
			TravelStyle: []string{"cultural"},
			Interests:   []string{"temples", "food"},
			Dietary:     []string{"vegetarian"},
			Group:       types.GroupComposition{Adults: 2},
		},
		Constraints: &types.Constraints{
			StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
		},
		Personalization: types.Personalization{MustInclude: []string{"Kinkaku-ji"}},
	}
	return a, g, s, p
}

func newTestCoordinator(opts ...Option) *Coordinator {
	return NewCoordinator(DefaultConfig(), append([]Option{WithClock(fixedClock)}, opts...)...)
}

func TestSynthesizeHighConfidenceScenario(t *testing.T) {
	a, g, s, p := fixture("Kyoto")

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)

	require.True(t, result.Success, "errors: %v", result.Errors)
	require.NotNil(t, result.Itinerary)
	assert.Empty(t, result.Errors)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.InDelta(t, 0.915, result.Confidence, 1e-9)
	assert.Equal(t, "Kyoto", result.Itinerary.Destination)
	assert.Equal(t, []types.Role{types.RoleArchitect, types.RoleGatherer, types.RoleSpecialist, types.RolePutter}, result.Metadata.Contributors)
	assert.Equal(t, 3, result.Metadata.SourceCount)
	assert.Equal(t, PipelineVersion, result.Metadata.PipelineVersion)

	it := result.Itinerary
	assert.Equal(t, fixedNow, it.Metadata.GeneratedAt)
	assert.Equal(t, PipelineVersion, it.Metadata.Version)
	assert.Equal(t, result.Confidence, it.Metadata.Confidence)
	assert.Equal(t, result.Quality, it.Metadata.Quality)
	assert.Len(t, it.DailyPlans, 5)
	assert.Len(t, it.Accommodations, 1)
	assert.Len(t, it.Dining, 2)
	assert.Len(t, it.Transportation, 1)
	assert.Len(t, it.Activities, 4, "three attractions plus one hidden gem")
}

func TestSynthesizeRejectsLowArchitectConfidence(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	a.Confidence = 0.5

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)

	assert.False(t, result.Success)
	assert.Nil(t, result.Itinerary)
	require.NotEmpty(t, result.Errors)
	var found bool
	for _, e := range result.Errors {
		if strings.Contains(e, "confidence") {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", result.Errors)
}

func TestSynthesizeReportsEveryValidationFailure(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	a.Title = ""
	a.Confidence = 0.2
	g.Attractions = nil
	s.Insights = nil
	s.Destination = "Osaka"
	p.Preferences = nil
	p.Constraints = nil

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)

	assert.False(t, result.Success)
	assert.Nil(t, result.Itinerary)
	joined := strings.Join(result.Errors, "\n")
	for _, want := range []string{
		errors.ErrMissingRequired,
		errors.ErrConfidenceTooLow,
		errors.ErrDestinationMismatch,
		"no title",
		"no candidate attractions",
		"no insights",
		"no preferences",
		"no constraints",
	} {
		assert.Contains(t, joined, want)
	}
	assert.Len(t, result.Errors, 7)
}

func TestSynthesizePutterDestinationIsOptional(t *testing.T) {
	tests := []struct {
		name    string
		dest    string
		success bool
	}{
		{name: "empty", dest: "", success: true},
		{name: "blank", dest: "  ", success: true},
		{name: "matching", dest: " Kyoto ", success: true},
		{name: "different", dest: "Osaka", success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, g, s, p := fixture("Kyoto")
			p.Destination = tt.dest

			result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
			assert.Equal(t, tt.success, result.Success, "errors: %v", result.Errors)
			if tt.success {
				assert.Equal(t, "Kyoto", result.Itinerary.Destination)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], errors.ErrDestinationMismatch)
			assert.Contains(t, result.Errors[0], `putter="Osaka"`)
		})
	}
}

func TestSynthesizeMissingOutputs(t *testing.T) {
	result := newTestCoordinator().Synthesize(context.Background(), nil, nil, nil, nil)

	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 4)
	assert.Empty(t, result.Metadata.Contributors)
}

func TestSynthesizeBudgetTotalDivergesFromBreakdown(t *testing.T) {
	tests := []struct {
		flexibility types.Flexibility
		total       float64
	}{
		{types.FlexibilityStrict, 4000},
		{types.FlexibilityModerate, 4200},
		{types.FlexibilityFlexible, 4400},
		{"", 4000},
	}

	for _, tt := range tests {
		t.Run(string(tt.flexibility), func(t *testing.T) {
			a, g, s, p := fixture("Kyoto")
			p.Preferences.Budget.Flexibility = tt.flexibility

			result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
			require.True(t, result.Success)

			budget := result.Itinerary.Budget
			assert.InDelta(t, tt.total, budget.Total, 1e-6)
			// breakdown and per-person keep the unadjusted figures
			assert.InDelta(t, 4000, budget.Breakdown.Sum(), 1e-6)
			require.NotNil(t, budget.PerPerson)
			assert.InDelta(t, 2000, *budget.PerPerson, 1e-6)
			if tt.total > 4000 {
				assert.Greater(t, budget.Total, budget.Breakdown.Sum())
			}
		})
	}
}

func TestSynthesizeSelectsInterestMatchesFirst(t *testing.T) {
	a, g, s, p := fixture("Kyoto")

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	day := result.Itinerary.DailyPlans[0]
	require.Len(t, day.Activities, 4)
	names := make([]string, 0, len(day.Activities))
	for _, act := range day.Activities {
		names = append(names, act.Name)
	}
	assert.ElementsMatch(t, []string{
		"Zen meditation at Kennin-ji",
		"Nishiki market food tour",
		"Pontocho izakaya crawl",
		"Kiyomizu-dera at dawn",
	}, names)
	assert.Equal(t, "Day 1: Zen meditation at Kennin-ji & More", day.Title)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), day.Date)
	assert.Equal(t, "Dietary requirements: vegetarian", day.Meals.Dinner.Note)
	assert.NotEmpty(t, day.Meals.Breakfast.Venue)
}

func TestSynthesizeWithoutInterestsBackfillsAndRotates(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	p.Preferences.Interests = nil

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	plans := result.Itinerary.DailyPlans
	require.Len(t, plans, 5)
	assert.Len(t, plans[0].Activities, 4)
	assert.Equal(t, "Zen meditation at Kennin-ji", plans[0].Activities[0].Name)
	assert.Equal(t, "Pontocho izakaya crawl", plans[1].Activities[0].Name)

	for _, plan := range plans {
		seen := map[string]bool{}
		for _, act := range plan.Activities {
			assert.False(t, seen[act.Name], "duplicate %q on day %d", act.Name, plan.Day)
			seen[act.Name] = true
		}
	}
}

func TestSynthesizeFiltersDaysWithoutMatches(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	p.Preferences.Interests = []string{"skiing"}

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	day := result.Itinerary.DailyPlans[0]
	assert.Empty(t, day.Activities)
	assert.NotNil(t, day.Activities)
	assert.Equal(t, "Day 1: Explore Kyoto", day.Title)
}

func TestSynthesizeReconcilesDates(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	a.Duration = types.Duration{Days: 3, Nights: 2}

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	d := result.Itinerary.Duration
	assert.Equal(t, 5, d.Days)
	assert.Equal(t, 4, d.Nights)
	assert.Len(t, result.Itinerary.DailyPlans, 3)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "reconciled")

	// only a start date: architect counts apply
	a, g, s, p = fixture("Kyoto")
	p.Constraints.EndDate = time.Time{}
	result = newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)
	assert.Equal(t, time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC), result.Itinerary.Duration.EndDate)
}

func TestSynthesizeCapsDailyPlans(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	a.Duration = types.Duration{Days: 30, Nights: 29}
	p.Constraints = &types.Constraints{}

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)
	assert.Len(t, result.Itinerary.DailyPlans, 14)
}

func TestSynthesizeTipsAndNotes(t *testing.T) {
	a, g, s, p := fixture("Kyoto")

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	it := result.Itinerary
	require.Len(t, it.Tips, 2)
	assert.Equal(t, "Go early", it.Tips[0].Title)
	assert.Equal(t, "culture", it.Tips[1].Category)
	assert.Contains(t, it.Tips[1].Body, "Do: Bow at the gate")
	assert.Contains(t, it.Tips[1].Body, "Don't: Walk in the center of the path")

	assert.Contains(t, it.Notes, "Spring: Book early for cherry blossoms; Visit the Philosopher's Path")
	assert.Contains(t, it.Notes, "Travel style: cultural")
	assert.Contains(t, it.Notes, "Must include: Kinkaku-ji")
}

func TestSynthesizeSubstitutesDefaults(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	a.Overview = ""
	a.Travelers = types.Travelers{}
	a.Budget.Currency = ""
	p.Preferences.Budget.Currency = ""
	p.Preferences.Budget.Flexibility = types.FlexibilityStrict

	result := newTestCoordinator().Synthesize(context.Background(), a, g, s, p)
	require.True(t, result.Success)

	it := result.Itinerary
	assert.Equal(t, types.Travelers{Adults: 2}, it.Travelers)
	assert.Equal(t, "USD", it.Budget.Currency)
	assert.NotEmpty(t, it.Overview)
	require.NotNil(t, it.Budget.PerPerson)
	assert.InDelta(t, 2000, *it.Budget.PerPerson, 1e-6)
	assert.GreaterOrEqual(t, len(result.Warnings), 3)
}

func TestSynthesizeRecoversFromInternalFault(t *testing.T) {
	a, g, s, p := fixture("Kyoto")
	var calls atomic.Int32
	clock := func() time.Time {
		// the second reading happens inside the finalize stage
		if calls.Add(1) == 2 {
			panic("clock unavailable")
		}
		return fixedNow
	}

	result := NewCoordinator(DefaultConfig(), WithClock(clock)).Synthesize(context.Background(), a, g, s, p)

	assert.False(t, result.Success)
	assert.Nil(t, result.Itinerary)
	assert.Equal(t, []string{"Synthesis failed: clock unavailable"}, result.Errors)
}

func TestSynthesizeIsDeterministicAndConcurrent(t *testing.T) {
	coord := newTestCoordinator()
	a, g, s, p := fixture("Kyoto")
	want := coord.Synthesize(context.Background(), a, g, s, p)

	var wg sync.WaitGroup
	results := make([]*types.SynthesisResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = coord.Synthesize(context.Background(), a, g, s, p)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestSynthesizeReportsToRecorder(t *testing.T) {
	collector := telemetry.NewCollector()
	coord := newTestCoordinator(WithRecorder(collector))

	a, g, s, p := fixture("Kyoto")
	ok := coord.Synthesize(context.Background(), a, g, s, p)
	require.True(t, ok.Success)
	a.Confidence = 0.1
	coord.Synthesize(context.Background(), a, g, s, p)

	metrics := collector.Completed(telemetry.CategorySynthesis, time.Time{})
	require.Len(t, metrics, 2)
	assert.True(t, metrics[0].Success)
	require.NotNil(t, metrics[0].Metadata.Quality)
	assert.InDelta(t, ok.Quality, *metrics[0].Metadata.Quality, 1e-9)
	assert.False(t, metrics[1].Success)
	assert.Equal(t, "validation", metrics[1].ErrorKind)
}

func TestSynthesizeOutputsDispatchesByRole(t *testing.T) {
	a, g, s, p := fixture("Lisbon")
	coord := newTestCoordinator()

	result := coord.SynthesizeOutputs(context.Background(), p, s, g, a)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, "Lisbon", result.Itinerary.Destination)

	dup := coord.SynthesizeOutputs(context.Background(), a, a, g, s, p)
	assert.False(t, dup.Success)
	assert.Contains(t, strings.Join(dup.Errors, "\n"), errors.ErrDuplicateRoleOutput)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Weights.Architect = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigInvalid, errors.Code(err))

	cfg = DefaultConfig()
	cfg.MaxDailyPlans = 0
	assert.Error(t, cfg.Validate())
}
