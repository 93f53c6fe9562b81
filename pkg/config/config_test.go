package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

const sample = `
synthesis:
  minArchitectConfidence: 0.8
  maxDailyPlans: 10
  budgetMultipliers:
    flexible: 1.2
telemetry:
  retention: 12h
  targets:
    agent-call: 25s
alerting:
  dedupWindow: 10m
  dispatch:
    ratePerSecond: 2
gcp:
  projectId: travel-prod
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tripsynth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every override so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvTelemetryEnabled, EnvRetention, EnvProjectID, EnvAlertTopic, EnvSnapshotCollection} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, telemetry.DefaultRetention, cfg.Telemetry.Retention)
	assert.Equal(t, 0.7, cfg.Synthesis.MinArchitectConfidence)
	assert.Equal(t, 14, cfg.Synthesis.MaxDailyPlans)
	assert.Equal(t, 30*time.Minute, cfg.Alerting.DedupWindow)
	assert.False(t, cfg.GCP.Enabled())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Synthesis.MinArchitectConfidence)
	assert.Equal(t, 10, cfg.Synthesis.MaxDailyPlans)
	assert.Equal(t, 4, cfg.Synthesis.MaxActivitiesPerDay)
	assert.Equal(t, 1.2, cfg.Synthesis.BudgetMultipliers[types.FlexibilityFlexible])
	assert.Equal(t, 1.05, cfg.Synthesis.BudgetMultipliers[types.FlexibilityModerate])
	assert.Equal(t, 12*time.Hour, cfg.Telemetry.Retention)
	assert.Equal(t, 25*time.Second, cfg.Telemetry.Targets[telemetry.CategoryAgentCall])
	assert.Equal(t, 10*time.Minute, cfg.Alerting.DedupWindow)
	assert.Equal(t, 5*time.Minute, cfg.Alerting.PerformanceDedupWindow)
	assert.Equal(t, 2.0, cfg.Alerting.Dispatch.RatePerSecond)
	assert.Equal(t, 256, cfg.Alerting.Dispatch.QueueSize)
	assert.Equal(t, "travel-prod", cfg.GCP.ProjectID)
	assert.Equal(t, "tripsynth-alerts", cfg.GCP.AlertTopic)
	assert.True(t, cfg.GCP.Enabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvTelemetryEnabled, "false")
	t.Setenv(EnvRetention, "2h")
	t.Setenv(EnvProjectID, "travel-staging")
	t.Setenv(EnvAlertTopic, "ops-alerts")
	t.Setenv(EnvSnapshotCollection, "ops-snapshots")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Telemetry.Retention)
	assert.Equal(t, "travel-staging", cfg.GCP.ProjectID)
	assert.Equal(t, "ops-alerts", cfg.GCP.AlertTopic)
	assert.Equal(t, "ops-snapshots", cfg.GCP.SnapshotCollection)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "confidence out of range", body: "synthesis:\n  minArchitectConfidence: 1.5\n"},
		{name: "weights do not sum", body: "synthesis:\n  weights:\n    architect: 0.9\n"},
		{name: "negative target", body: "telemetry:\n  targets:\n    agent-call: -1s\n"},
		{name: "bad yaml", body: "synthesis: [\n"},
		{name: "bad retention env", body: "", env: map[string]string{EnvRetention: "soon"}},
		{name: "bad enabled env", body: "", env: map[string]string{EnvTelemetryEnabled: "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, errors.ErrConfigInvalid, errors.Code(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigInvalid, errors.Code(err))
}
