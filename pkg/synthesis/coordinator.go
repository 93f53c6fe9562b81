package synthesis

import (
	"context"
	"fmt"
	"time"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// Coordinator merges the four role outputs into one itinerary. It holds no
// per-call state and is safe for concurrent use.
type Coordinator struct {
	cfg      Config
	recorder telemetry.Recorder
	logger   telemetry.Logger
	now      func() time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRecorder reports every run to the recorder under the synthesis category
func WithRecorder(r telemetry.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l telemetry.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator
func NewCoordinator(cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		logger: telemetry.NewNoopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the coordinator configuration
func (c *Coordinator) Config() Config {
	return c.cfg
}

// SynthesizeOutputs dispatches a set of role outputs by role and
// synthesizes them. Supplying the same role twice fails the run.
func (c *Coordinator) SynthesizeOutputs(ctx context.Context, outputs ...types.RoleOutput) *types.SynthesisResult {
	var (
		a    *types.ArchitectOutput
		g    *types.GathererOutput
		s    *types.SpecialistOutput
		p    *types.PutterOutput
		errs []*errors.Error
	)
	seen := make(map[types.Role]bool, len(outputs))
	for _, out := range outputs {
		if out == nil {
			continue
		}
		role := out.Role()
		if seen[role] {
			errs = append(errs, errors.Newf(errors.ErrDuplicateRoleOutput, "%s output supplied more than once", role))
			continue
		}
		seen[role] = true
		switch v := out.(type) {
		case *types.ArchitectOutput:
			a = v
		case *types.GathererOutput:
			g = v
		case *types.SpecialistOutput:
			s = v
		case *types.PutterOutput:
			p = v
		default:
			errs = append(errs, errors.Newf(errors.ErrUnknownRole, "unsupported role output %T", out))
		}
	}
	return c.synthesize(ctx, a, g, s, p, errs)
}

// Synthesize validates the role outputs and, when they are acceptable,
// merges, enriches, optimizes and finalizes them into an itinerary.
// Validation failures and internal faults are reported in the result.
func (c *Coordinator) Synthesize(ctx context.Context, a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) *types.SynthesisResult {
	return c.synthesize(ctx, a, g, s, p, nil)
}

func (c *Coordinator) synthesize(ctx context.Context, a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput, pre []*errors.Error) *types.SynthesisResult {
	start := c.now()
	var destination string
	if a != nil {
		destination = a.Destination
	}
	metricID := c.begin(ctx, destination)

	result := &types.SynthesisResult{
		Errors:   []string{},
		Warnings: []string{},
		Metadata: resultMetadata(a, g, s, p),
	}

	errs := append(pre, Validate(c.cfg, a, g, s, p)...)
	if len(errs) > 0 {
		for _, err := range errs {
			result.Errors = append(result.Errors, err.Error())
		}
		result.ProcessingTime = c.now().Sub(start)
		c.logger.Warn(ctx, "synthesis rejected", "destination", destination, "errors", len(errs))
		c.end(ctx, metricID, result, "validation")
		return result
	}

	it, warnings, err := c.run(a, g, s, p)
	if err != nil {
		result.Errors = append(result.Errors, "Synthesis failed: "+err.Error())
		result.ProcessingTime = c.now().Sub(start)
		c.logger.Error(ctx, "synthesis failed", "err", errors.Wrap(err, errors.ErrPanic), "destination", destination)
		c.end(ctx, metricID, result, "internal")
		return result
	}

	confidence := ScoreConfidence(c.cfg.Weights, a, g, s, p)
	quality := ScoreQuality(c.cfg.Rubric, it, p.Interests(), confidence)
	elapsed := c.now().Sub(start)

	it.Metadata.Confidence = confidence
	it.Metadata.Quality = quality
	it.Metadata.ProcessingTime = elapsed

	result.Success = true
	result.Itinerary = it
	result.Confidence = confidence
	result.Quality = quality
	result.ProcessingTime = elapsed
	result.Warnings = append(result.Warnings, warnings...)

	c.logger.Info(ctx, "synthesis completed",
		"destination", it.Destination,
		"days", len(it.DailyPlans),
		"confidence", confidence,
		"quality", quality,
		"warnings", len(warnings))
	c.end(ctx, metricID, result, "")
	return result
}

// run executes stages 2-5. A panic in any stage aborts the run and is
// returned as an error.
func (c *Coordinator) run(a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) (it *types.Itinerary, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			it, warnings = nil, nil
			err = fmt.Errorf("%v", r)
		}
	}()

	pl := newPipeline(c.cfg, a, g, s, p)
	pl.merge()
	pl.enrich()
	pl.optimize()
	pl.finalize(c.now())
	return pl.it, pl.warnings, nil
}

func (c *Coordinator) begin(ctx context.Context, destination string) string {
	if c.recorder == nil {
		return ""
	}
	return c.recorder.Begin(ctx, telemetry.CategorySynthesis, destination, map[string]string{
		"pipelineVersion": PipelineVersion,
	})
}

func (c *Coordinator) end(ctx context.Context, id string, result *types.SynthesisResult, errorKind string) {
	if c.recorder == nil || id == "" {
		return
	}
	outcome := telemetry.Outcome{Success: result.Success, ErrorKind: errorKind}
	if result.Success {
		confidence, quality := result.Confidence, result.Quality
		outcome.Metadata.Confidence = &confidence
		outcome.Metadata.Quality = &quality
	}
	c.recorder.End(ctx, id, outcome)
}

func resultMetadata(a *types.ArchitectOutput, g *types.GathererOutput, s *types.SpecialistOutput, p *types.PutterOutput) types.ResultMetadata {
	md := types.ResultMetadata{Contributors: []types.Role{}, PipelineVersion: PipelineVersion}
	if a != nil {
		md.Contributors = append(md.Contributors, types.RoleArchitect)
	}
	if g != nil {
		md.Contributors = append(md.Contributors, types.RoleGatherer)
		md.SourceCount = len(g.Sources)
	}
	if s != nil {
		md.Contributors = append(md.Contributors, types.RoleSpecialist)
	}
	if p != nil {
		md.Contributors = append(md.Contributors, types.RolePutter)
	}
	return md
}
