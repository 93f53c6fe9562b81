package synthesis

import (
	"math"
	"strings"

	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// ScoreConfidence combines role-level signals into a confidence in [0,1]
func ScoreConfidence(w ConfidenceWeights, a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) float64 {
	var score float64

	if a != nil {
		score += clamp01(a.Confidence) * w.Architect
	}

	gatherer := w.GathererWithoutSources
	if g != nil && len(g.Sources) > 0 {
		gatherer = w.GathererWithSources
	}
	score += gatherer * w.Gatherer

	specialist := w.SpecialistWithoutInsights
	if s != nil && len(s.Insights) > 0 {
		specialist = w.SpecialistWithInsights
	}
	score += specialist * w.Specialist

	putter := w.PutterWithoutPreferences
	if p != nil && p.Preferences != nil {
		putter = w.PutterWithPreferences
	}
	score += putter * w.Putter

	return clamp01(score)
}

// ScoreQuality grades a finalized itinerary against the rubric and returns
// the achieved fraction of the available points.
func ScoreQuality(r QualityRubric, it *types.Itinerary, interests []string, confidence float64) float64 {
	total := r.Total()
	if it == nil || total <= 0 {
		return 0
	}

	var points float64

	if strings.TrimSpace(it.Overview) != "" {
		points += r.Overview
	}
	if len(it.Highlights) > 0 {
		points += r.Highlights
	}
	if len(it.DailyPlans) > 0 {
		points += r.DailyPlans
	}
	if it.Budget.Total > 0 {
		points += r.Budget
	}

	points += r.InterestMatch * interestMatchRatio(it, interests)

	if len(it.Accommodations) > 0 {
		points += r.Accommodations
	}
	if len(it.Transportation) > 0 {
		points += r.Transportation
	}
	if len(it.Dining) > 0 {
		points += r.Dining
	}

	if len(it.Tips) > 0 {
		points += r.Tips
	}
	if confidence > r.ConfidenceThreshold {
		points += r.HighConfidence
	}

	return clamp01(points / total)
}

// interestMatchRatio is the share of scheduled activities matching the
// declared interests. Without declared interests any scheduled activity
// counts as a match.
func interestMatchRatio(it *types.Itinerary, interests []string) float64 {
	var selected, matched int
	for _, day := range it.DailyPlans {
		for _, act := range day.Activities {
			selected++
			if matchesInterests(act.Tags, interests) {
				matched++
			}
		}
	}
	if selected == 0 {
		return 0
	}
	if len(normalize(interests)) == 0 {
		return 1
	}
	return float64(matched) / float64(selected)
}

// matchesInterests reports whether any tag and any interest contain one
// another, ignoring case.
func matchesInterests(tags, interests []string) bool {
	want := normalize(interests)
	for _, tag := range normalize(tags) {
		for _, interest := range want {
			if strings.Contains(tag, interest) || strings.Contains(interest, tag) {
				return true
			}
		}
	}
	return false
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
