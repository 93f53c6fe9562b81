package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/tripsynth/pkg/config"
	"github.com/spawn-mcp/tripsynth/pkg/monitor"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// recordingStore counts saves and flags any that arrive after closed is set
type recordingStore struct {
	mu         sync.Mutex
	delay      time.Duration
	saved      []monitor.Snapshot
	closed     bool
	lateWrites int
}

func (s *recordingStore) SaveSnapshot(ctx context.Context, snap monitor.Snapshot) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.lateWrites++
	}
	s.saved = append(s.saved, snap)
	return nil
}

func (s *recordingStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func clearServeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvProjectID,
		config.EnvAlertTopic,
		config.EnvSnapshotCollection,
		config.EnvTelemetryEnabled,
		config.EnvRetention,
	} {
		t.Setenv(key, "")
	}
}

func TestRunServeRejectsBadInvocations(t *testing.T) {
	clearServeEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing config", args: []string{"serve", "--config", "/nonexistent/tripsynth.yaml"}},
		{name: "unknown flag", args: []string{"serve", "--port", "8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader(""), &stdout, &stderr)
			require.Error(t, err)
			var coded *exitError
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, 2, coded.ExitCode())
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunServeReturnsWhenInputCloses(t *testing.T) {
	clearServeEnv(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"serve"}, strings.NewReader(""), &stdout, &stderr)
	assert.NoError(t, err)
}

func TestRunServeStopsOnCancel(t *testing.T) {
	clearServeEnv(t)

	stdin, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var stdout, stderr bytes.Buffer
		done <- run(ctx, []string{"serve"}, stdin, &stdout, &stderr)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeFlushesFinalSnapshotBeforeReturning(t *testing.T) {
	cfg := config.Default()
	cfg.GCP.SnapshotInterval = time.Hour
	store := &recordingStore{delay: 100 * time.Millisecond}

	stdin, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var stdout bytes.Buffer
		done <- serve(ctx, cfg, telemetry.NewNoopLogger(), sinks{store: store}, stdin, &stdout)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	store.Close()
	time.Sleep(150 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.saved, 1)
	assert.Zero(t, store.lateWrites)
}

func TestServeFlushesSnapshotWhenInputCloses(t *testing.T) {
	cfg := config.Default()
	cfg.GCP.SnapshotInterval = time.Hour
	store := &recordingStore{}

	var stdout bytes.Buffer
	err := serve(context.Background(), cfg, telemetry.NewNoopLogger(), sinks{store: store}, strings.NewReader(""), &stdout)
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.saved, 1)
}

func TestNewMonitorAppliesTelemetryConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Retention = 90 * time.Minute

	mon := newMonitor(cfg, telemetry.NewNoopLogger(), nil)
	defer mon.Close()
	assert.True(t, mon.Collector().Enabled())
	assert.Equal(t, 90*time.Minute, mon.Collector().Retention())

	cfg.Telemetry.Enabled = false
	disabled := newMonitor(cfg, telemetry.NewNoopLogger(), nil)
	defer disabled.Close()
	assert.False(t, disabled.Collector().Enabled())
	assert.Empty(t, disabled.BeginOperation(context.Background(), telemetry.CategoryAgentCall, "inst-1", nil))
}
