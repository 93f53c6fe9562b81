package synthesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/spawn-mcp/tripsynth/pkg/types"
)

const (
	breakfastVenue = "Hotel breakfast or a nearby café"
	lunchVenue     = "Local restaurant near the day's activities"
	dinnerVenue    = "Recommended dinner spot"
)

// pipeline carries one synthesis run through the merge, enrich, optimize
// and finalize stages. It is discarded after the run.
type pipeline struct {
	cfg        Config
	architect  *types.ArchitectOutput
	gatherer   *types.GathererOutput
	specialist *types.SpecialistOutput
	putter     *types.PutterOutput

	it        *types.Itinerary
	baseTotal float64
	warnings  []string
}

func newPipeline(cfg Config, a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) *pipeline {
	return &pipeline{cfg: cfg, architect: a, gatherer: g, specialist: s, putter: p}
}

func (p *pipeline) warn(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// merge copies the fields owned by a single role into a skeleton itinerary
func (p *pipeline) merge() {
	a := p.architect
	it := &types.Itinerary{
		Title:       strings.TrimSpace(a.Title),
		Destination: strings.TrimSpace(a.Destination),
		Overview:    a.Overview,
		Highlights:  append([]string(nil), a.Highlights...),
		Travelers:   a.Travelers,
		Budget: types.Budget{
			Total:     a.Budget.Total,
			Currency:  a.Budget.Currency,
			Breakdown: p.nonNegativeBreakdown(a.Budget.Breakdown),
		},
	}
	p.it = it

	if it.Budget.Currency == "" && p.putter.Preferences != nil {
		it.Budget.Currency = p.putter.Preferences.Budget.Currency
	}
	p.baseTotal = it.Budget.Total
	if people := it.Travelers.Total(); people > 0 {
		perPerson := it.Budget.Total / float64(people)
		it.Budget.PerPerson = &perPerson
	}

	p.mergeDuration()

	g := p.gatherer
	for _, c := range g.Accommodations {
		it.Accommodations = append(it.Accommodations, types.Accommodation{
			Name: c.Name, Type: c.Category, PriceTier: c.PriceTier, Rating: c.Rating, Cost: c.Cost,
		})
	}
	for _, c := range g.Transportation {
		it.Transportation = append(it.Transportation, types.TransportOption{
			Name: c.Name, Mode: c.Category, PriceTier: c.PriceTier, Cost: c.Cost,
		})
	}
	for _, c := range g.Dining {
		it.Dining = append(it.Dining, types.DiningOption{
			Name: c.Name, Cuisine: c.Category, PriceTier: c.PriceTier, Rating: c.Rating,
		})
	}
	for _, c := range g.Attractions {
		act := types.Activity{Name: c.Name, Description: c.Description, Category: c.Category}
		if c.Cost != nil {
			act.Cost = *c.Cost
		}
		it.Activities = append(it.Activities, act)
	}
	for _, gem := range p.specialist.HiddenGems {
		act := types.Activity{Name: gem.Name, Description: gem.Description, Category: "hidden-gem"}
		if gem.Why != "" {
			act.Tips = []string{gem.Why}
		}
		it.Activities = append(it.Activities, act)
	}
}

// mergeDuration reconciles architect day/night counts with the putter's
// literal dates. Literal dates win when they form a valid range.
func (p *pipeline) mergeDuration() {
	a := p.architect
	d := types.TripDuration{Days: max(a.Duration.Days, 0), Nights: max(a.Duration.Nights, 0)}

	if c := p.putter.Constraints; c != nil {
		start, end := c.StartDate, c.EndDate
		switch {
		case !start.IsZero() && !end.IsZero() && !end.Before(start):
			days := calendarDays(start, end) + 1
			if days != d.Days {
				p.warn("duration reconciled to %d days from travel dates (architect proposed %d)", days, a.Duration.Days)
			}
			d.Days = days
			d.Nights = days - 1
			d.StartDate = start
			d.EndDate = end
		case !start.IsZero():
			if !end.IsZero() {
				p.warn("end date %s precedes start date %s; using architect duration", end.Format(time.DateOnly), start.Format(time.DateOnly))
			}
			d.StartDate = start
			d.EndDate = start.AddDate(0, 0, d.Nights)
		}
	}
	p.it.Duration = d
}

// enrich builds the daily plans, tips and seasonal notes
func (p *pipeline) enrich() {
	it := p.it
	interests := p.putter.Interests()

	planDays := min(max(p.architect.Duration.Days, 0), it.Duration.Days, p.cfg.MaxDailyPlans)

	var matched, unmatched []types.Activity
	for _, exp := range p.specialist.LocalExperiences {
		act := types.Activity{
			Name:         exp.Name,
			Description:  exp.Description,
			Category:     "local-experience",
			Cost:         exp.Cost,
			Duration:     exp.Duration,
			Tags:         append([]string(nil), exp.SuitableFor...),
			Tips:         append([]string(nil), exp.Tips...),
			Authenticity: exp.Authenticity,
		}
		if matchesInterests(act.Tags, interests) {
			matched = append(matched, act)
		} else {
			unmatched = append(unmatched, act)
		}
	}

	meals := p.meals()
	plans := make([]types.DailyPlan, 0, planDays)
	for day := 0; day < planDays; day++ {
		acts := p.selectActivities(day, matched, unmatched)
		plan := types.DailyPlan{
			Day:        day + 1,
			Activities: acts,
			Meals:      meals,
		}
		if !it.Duration.StartDate.IsZero() {
			plan.Date = it.Duration.StartDate.AddDate(0, 0, day)
		}
		plan.Title = dayTitle(plan.Day, acts, it.Destination)
		plans = append(plans, plan)
	}
	it.DailyPlans = plans

	for _, in := range p.specialist.Insights {
		switch strings.ToLower(strings.TrimSpace(in.Category)) {
		case "tips", "advice":
			it.Tips = append(it.Tips, types.Tip{Category: in.Category, Title: in.Title, Body: in.Body, Priority: in.Priority})
		}
	}
	for _, note := range p.specialist.CulturalNotes {
		it.Tips = append(it.Tips, types.Tip{
			Category: "culture",
			Title:    note.Topic,
			Body:     culturalBody(note),
			Priority: "medium",
		})
	}

	var seasonal []string
	for _, sc := range p.specialist.Seasonal {
		if len(sc.Recommendations) == 0 {
			continue
		}
		seasonal = append(seasonal, fmt.Sprintf("%s: %s", sc.Season, strings.Join(sc.Recommendations, "; ")))
	}
	it.Notes = strings.Join(seasonal, "\n")
}

// selectActivities picks up to the per-day cap, matched experiences first
// then unmatched ones. Both pools rotate by day so consecutive days differ
// when the pools are large enough.
func (p *pipeline) selectActivities(day int, matched, unmatched []types.Activity) []types.Activity {
	limit := p.cfg.MaxActivitiesPerDay
	out := make([]types.Activity, 0, limit)
	used := make(map[string]struct{}, limit)

	take := func(pool []types.Activity) {
		if len(pool) == 0 {
			return
		}
		offset := (day * limit) % len(pool)
		for i := 0; i < len(pool) && len(out) < limit; i++ {
			act := pool[(offset+i)%len(pool)]
			key := strings.ToLower(act.Name)
			if _, dup := used[key]; dup {
				continue
			}
			used[key] = struct{}{}
			out = append(out, act)
		}
	}
	take(matched)
	take(unmatched)
	return out
}

func (p *pipeline) meals() types.Meals {
	var note string
	if prefs := p.putter.Preferences; prefs != nil && len(prefs.Dietary) > 0 {
		note = "Dietary requirements: " + strings.Join(prefs.Dietary, ", ")
	}
	return types.Meals{
		Breakfast: types.Meal{Venue: breakfastVenue, Note: note},
		Lunch:     types.Meal{Venue: lunchVenue, Note: note},
		Dinner:    types.Meal{Venue: dinnerVenue, Note: note},
	}
}

// optimize narrows daily activities to declared interests, applies the
// budget flexibility multiplier and records the personalization summary.
func (p *pipeline) optimize() {
	it := p.it
	prefs := p.putter.Preferences
	interests := p.putter.Interests()

	if len(normalize(interests)) > 0 {
		for i := range it.DailyPlans {
			plan := &it.DailyPlans[i]
			kept := plan.Activities[:0:0]
			for _, act := range plan.Activities {
				if matchesInterests(act.Tags, interests) {
					kept = append(kept, act)
				}
			}
			plan.Activities = kept
			plan.Title = dayTitle(plan.Day, kept, it.Destination)
		}
	}

	if prefs == nil {
		return
	}

	// Only the total is scaled; the breakdown and per-person figures keep
	// the architect's numbers.
	it.Budget.Total *= p.cfg.multiplier(prefs.Budget.Flexibility)

	var lines []string
	if len(prefs.TravelStyle) > 0 {
		lines = append(lines, "Travel style: "+strings.Join(prefs.TravelStyle, ", "))
	}
	if len(prefs.Interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(prefs.Interests, ", "))
	}
	if len(prefs.Dietary) > 0 {
		lines = append(lines, "Dietary notes: "+strings.Join(prefs.Dietary, ", "))
	}
	if must := p.putter.Personalization.MustInclude; len(must) > 0 {
		lines = append(lines, "Must include: "+strings.Join(must, ", "))
	}
	if len(lines) == 0 {
		return
	}
	summary := "Personalization:\n" + strings.Join(lines, "\n")
	if it.Notes == "" {
		it.Notes = summary
	} else {
		it.Notes += "\n\n" + summary
	}
}

// finalize substitutes defaults for anything still missing and stamps the
// generation metadata.
func (p *pipeline) finalize(now time.Time) {
	it := p.it
	cfg := p.cfg

	if it.Destination == "" {
		it.Destination = "Unknown destination"
		p.warn("destination missing; using %q", it.Destination)
	}
	if it.Title == "" {
		it.Title = "Trip to " + it.Destination
		p.warn("title missing; using %q", it.Title)
	}
	if strings.TrimSpace(it.Overview) == "" {
		it.Overview = fmt.Sprintf("A personalized itinerary for %s.", it.Destination)
		p.warn("overview missing; using a generic overview")
	}
	if it.Travelers.Total() <= 0 {
		it.Travelers = types.Travelers{Adults: cfg.DefaultAdults}
		p.warn("traveler counts missing; defaulting to %d adults", cfg.DefaultAdults)
		perPerson := p.baseTotal / float64(cfg.DefaultAdults)
		it.Budget.PerPerson = &perPerson
	}
	if it.Budget.Total < 0 {
		it.Budget.Total = 0
		p.warn("negative budget total replaced with 0")
	}
	if it.Budget.Currency == "" {
		it.Budget.Currency = cfg.DefaultCurrency
		p.warn("budget currency missing; defaulting to %s", cfg.DefaultCurrency)
	}
	if len(it.DailyPlans) == 0 {
		p.warn("no daily plans could be built")
	}

	if it.Highlights == nil {
		it.Highlights = []string{}
	}
	if it.DailyPlans == nil {
		it.DailyPlans = []types.DailyPlan{}
	}
	for i := range it.DailyPlans {
		if it.DailyPlans[i].Activities == nil {
			it.DailyPlans[i].Activities = []types.Activity{}
		}
	}
	if it.Accommodations == nil {
		it.Accommodations = []types.Accommodation{}
	}
	if it.Transportation == nil {
		it.Transportation = []types.TransportOption{}
	}
	if it.Activities == nil {
		it.Activities = []types.Activity{}
	}
	if it.Dining == nil {
		it.Dining = []types.DiningOption{}
	}
	if it.Tips == nil {
		it.Tips = []types.Tip{}
	}

	it.Metadata = types.GenerationMetadata{
		GeneratedAt: now,
		Version:     PipelineVersion,
	}
}

// nonNegativeBreakdown clamps negative categories to zero
func (p *pipeline) nonNegativeBreakdown(b types.BudgetBreakdown) types.BudgetBreakdown {
	fix := func(name string, v *float64) {
		if *v < 0 {
			p.warn("negative %s budget replaced with 0", name)
			*v = 0
		}
	}
	fix("accommodation", &b.Accommodation)
	fix("transportation", &b.Transportation)
	fix("activities", &b.Activities)
	fix("dining", &b.Dining)
	fix("miscellaneous", &b.Miscellaneous)
	return b
}

func dayTitle(day int, acts []types.Activity, destination string) string {
	switch len(acts) {
	case 0:
		return fmt.Sprintf("Day %d: Explore %s", day, destination)
	case 1:
		return fmt.Sprintf("Day %d: %s", day, acts[0].Name)
	default:
		return fmt.Sprintf("Day %d: %s & More", day, acts[0].Name)
	}
}

func culturalBody(note types.CulturalNote) string {
	var b strings.Builder
	b.WriteString(note.Description)
	for _, do := range note.Dos {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Do: " + do)
	}
	for _, dont := range note.Donts {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Don't: " + dont)
	}
	return b.String()
}

// calendarDays counts whole calendar days from start to end
func calendarDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}
