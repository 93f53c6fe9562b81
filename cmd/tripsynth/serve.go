package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/config"
	"github.com/spawn-mcp/tripsynth/pkg/gcp"
	"github.com/spawn-mcp/tripsynth/pkg/mcp"
	"github.com/spawn-mcp/tripsynth/pkg/monitor"
	"github.com/spawn-mcp/tripsynth/pkg/synthesis"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// sinks are the optional external destinations for alerts and snapshots
type sinks struct {
	notifiers []alerting.Notifier
	store     monitor.SnapshotStore
}

func runServe(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		configPath string
		debug      bool
	)
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logs")
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
	logger := telemetry.NewClueLogger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out sinks
	if cfg.GCP.Enabled() {
		client, err := gcp.NewClient(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return err
		}
		defer client.Close()
		if cfg.GCP.AlertTopic != "" {
			publisher := client.AlertPublisher(cfg.GCP.AlertTopic, gcp.WithPublisherLogger(logger))
			defer publisher.Stop()
			out.notifiers = append(out.notifiers, publisher)
		}
		if cfg.GCP.SnapshotCollection != "" {
			out.store = client.SnapshotStore(cfg.GCP.SnapshotCollection)
		}
		logger.Info(ctx, "gcp sinks enabled", "project", cfg.GCP.ProjectID, "topic", cfg.GCP.AlertTopic, "collection", cfg.GCP.SnapshotCollection)
	}

	return serve(ctx, cfg, logger, out, stdin, stdout)
}

// serve runs the MCP tools until stdin closes or ctx is cancelled. On return
// the snapshot loop has written its final snapshot and queued alerts have
// been delivered, so callers may close the sinks afterwards.
func serve(ctx context.Context, cfg *config.Config, logger telemetry.Logger, out sinks, stdin io.Reader, stdout io.Writer) error {
	mon := newMonitor(cfg, logger, out.notifiers)
	mon.Start(ctx)
	defer mon.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if out.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			persistSnapshots(loopCtx, mon, out.store, cfg.GCP.SnapshotInterval)
		}()
	}

	coord := synthesis.NewCoordinator(cfg.Synthesis,
		synthesis.WithRecorder(mon.Recorder()),
		synthesis.WithLogger(logger),
	)
	srv := mcp.NewMCPServer(coord, mon, logger)

	logger.Info(ctx, "serving MCP over stdio", "version", synthesis.PipelineVersion)
	err := srv.Listen(ctx, stdin, stdout)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	logger.Info(ctx, "shutting down")
	return nil
}

// newMonitor builds the monitor from the telemetry and alerting sections
func newMonitor(cfg *config.Config, logger telemetry.Logger, notifiers []alerting.Notifier) *monitor.Monitor {
	collectorOpts := []telemetry.Option{telemetry.WithRetention(cfg.Telemetry.Retention)}
	if !cfg.Telemetry.Enabled {
		collectorOpts = append(collectorOpts, telemetry.WithDisabled())
	}
	return monitor.New(monitor.Config{
		Alerting:         cfg.Alerting,
		Targets:          cfg.Telemetry.Targets,
		SnapshotWindow:   cfg.Telemetry.SnapshotWindow,
		Logger:           logger,
		Notifiers:        notifiers,
		CollectorOptions: collectorOpts,
	})
}

// persistSnapshots saves a snapshot every interval and once more when ctx
// is cancelled. It returns after the final save.
func persistSnapshots(ctx context.Context, mon *monitor.Monitor, store monitor.SnapshotStore, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			mon.PersistSnapshot(flushCtx, store)
			cancel()
			return
		case <-ticker.C:
			mon.PersistSnapshot(ctx, store)
		}
	}
}
