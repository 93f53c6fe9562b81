package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/spawn-mcp/tripsynth/pkg/config"
	"github.com/spawn-mcp/tripsynth/pkg/synthesis"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

func runSynthesize(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		configPath string
		debug      bool
		roles      = []types.Role{types.RoleArchitect, types.RoleGatherer, types.RoleSpecialist, types.RolePutter}
		paths      = make([]string, len(roles))
	)
	flagSet := pflag.NewFlagSet("synthesize", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logs")
	for i, role := range roles {
		flagSet.StringVar(&paths[i], string(role), "", fmt.Sprintf("path to the %s output", role))
	}
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return &exitError{code: 2, err: err}
	}

	ctx = logContext(ctx, stderr, debug)
	cfg, err := config.Load(configPath)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	var outputs []types.RoleOutput
	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("read %s output: %w", roles[i], err)}
		}
		out, err := types.DecodeRoleOutputAs(data, roles[i])
		if err != nil {
			return &exitError{code: 2, err: err}
		}
		outputs = append(outputs, out)
	}

	logger := telemetry.NewClueLogger()
	mon := newMonitor(cfg, logger, nil)
	defer mon.Close()

	coord := synthesis.NewCoordinator(cfg.Synthesis,
		synthesis.WithRecorder(mon.Recorder()),
		synthesis.WithLogger(logger),
	)
	result := coord.SynthesizeOutputs(ctx, outputs...)
	for _, a := range mon.GetActiveAlerts() {
		logger.Warn(ctx, a.Message, "kind", a.Kind, "severity", a.Severity)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return &exitError{code: 1, err: fmt.Errorf("synthesis failed with %d errors", len(result.Errors))}
	}
	return nil
}
