package synthesis

import (
	"math"
	"sort"
	"strings"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// Validate checks the four role outputs and returns every failure found.
// An empty result means the outputs can be synthesized.
func Validate(cfg Config, a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) []*errors.Error {
	var errs []*errors.Error
	missing := func(msg string) {
		errs = append(errs, errors.New(errors.ErrMissingRequired, msg))
	}

	if a == nil {
		missing("architect output is missing")
	} else {
		if strings.TrimSpace(a.Title) == "" {
			missing("architect output has no title")
		}
		if strings.TrimSpace(a.Destination) == "" {
			missing("architect output has no destination")
		}
		if math.IsNaN(a.Confidence) || a.Confidence < cfg.MinArchitectConfidence {
			errs = append(errs, errors.Newf(errors.ErrConfidenceTooLow,
				"architect confidence %.2f is below the minimum %.2f", a.Confidence, cfg.MinArchitectConfidence).
				WithContext("confidence", a.Confidence))
		}
	}

	if g == nil {
		missing("gatherer output is missing")
	} else {
		if strings.TrimSpace(g.Destination) == "" {
			missing("gatherer output has no destination")
		}
		if len(g.Attractions) == 0 {
			missing("gatherer output has no candidate attractions")
		}
	}

	if s == nil {
		missing("specialist output is missing")
	} else {
		if strings.TrimSpace(s.Destination) == "" {
			missing("specialist output has no destination")
		}
		if len(s.Insights) == 0 {
			missing("specialist output has no insights")
		}
	}

	if p == nil {
		missing("putter output is missing")
	} else {
		if p.Preferences == nil {
			missing("putter output has no preferences")
		}
		if p.Constraints == nil {
			missing("putter output has no constraints")
		}
	}

	if err := checkDestinations(a, g, s, p); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// checkDestinations requires every supplied output to name the same
// destination, compared after trimming whitespace. The putter carries
// traveler preferences and may leave its destination empty; an empty putter
// destination is not compared.
func checkDestinations(a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) *errors.Error {
	seen := make(map[string][]string)
	add := func(role types.Role, dest string) {
		d := strings.TrimSpace(dest)
		seen[d] = append(seen[d], string(role))
	}
	if a != nil {
		add(types.RoleArchitect, a.Destination)
	}
	if g != nil {
		add(types.RoleGatherer, g.Destination)
	}
	if s != nil {
		add(types.RoleSpecialist, s.Destination)
	}
	if p != nil && strings.TrimSpace(p.Destination) != "" {
		add(types.RolePutter, p.Destination)
	}
	if len(seen) <= 1 {
		return nil
	}

	parts := make([]string, 0, len(seen))
	for dest, roles := range seen {
		parts = append(parts, strings.Join(roles, "/")+"="+quote(dest))
	}
	sort.Strings(parts)
	return errors.New(errors.ErrDestinationMismatch,
		"role outputs disagree on destination: "+strings.Join(parts, ", "))
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}
