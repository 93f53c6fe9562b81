package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/synthesis"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// Environment overrides
const (
	EnvTelemetryEnabled   = "TRIPSYNTH_TELEMETRY_ENABLED"
	EnvRetention          = "TRIPSYNTH_RETENTION"
	EnvProjectID          = "GOOGLE_CLOUD_PROJECT"
	EnvAlertTopic         = "TRIPSYNTH_ALERT_TOPIC"
	EnvSnapshotCollection = "TRIPSYNTH_SNAPSHOT_COLLECTION"
)

// Config is the process configuration
type Config struct {
	Synthesis synthesis.Config `yaml:"synthesis"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Alerting  alerting.Config  `yaml:"alerting"`
	GCP       GCPConfig        `yaml:"gcp"`
}

// TelemetryConfig configures the collector
type TelemetryConfig struct {
	Enabled        bool                                 `yaml:"enabled"`
	Retention      time.Duration                        `yaml:"retention"`
	SnapshotWindow time.Duration                        `yaml:"snapshotWindow"`
	Targets        map[telemetry.Category]time.Duration `yaml:"targets"`
}

// GCPConfig configures the optional Pub/Sub and Firestore sinks. Both are
// disabled without a project id.
type GCPConfig struct {
	ProjectID          string        `yaml:"projectId"`
	AlertTopic         string        `yaml:"alertTopic"`
	SnapshotCollection string        `yaml:"snapshotCollection"`
	SnapshotInterval   time.Duration `yaml:"snapshotInterval"`
}

// Enabled reports whether a project is configured
func (g GCPConfig) Enabled() bool {
	return g.ProjectID != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Synthesis: synthesis.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Enabled:        true,
			Retention:      telemetry.DefaultRetention,
			SnapshotWindow: time.Hour,
		},
		Alerting: alerting.DefaultConfig(),
		GCP: GCPConfig{
			AlertTopic:         "tripsynth-alerts",
			SnapshotCollection: "tripsynth-snapshots",
			SnapshotInterval:   5 * time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(fmt.Errorf("read config %s: %w", path, err), errors.ErrConfigInvalid)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their values.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(fmt.Errorf("parse config: %w", err), errors.ErrConfigInvalid)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvTelemetryEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Newf(errors.ErrConfigInvalid, "%s: %v", EnvTelemetryEnabled, err)
		}
		c.Telemetry.Enabled = enabled
	}
	if v := os.Getenv(EnvRetention); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Newf(errors.ErrConfigInvalid, "%s: %v", EnvRetention, err)
		}
		c.Telemetry.Retention = d
	}
	c.GCP.ProjectID = getEnvOrDefault(EnvProjectID, c.GCP.ProjectID)
	c.GCP.AlertTopic = getEnvOrDefault(EnvAlertTopic, c.GCP.AlertTopic)
	c.GCP.SnapshotCollection = getEnvOrDefault(EnvSnapshotCollection, c.GCP.SnapshotCollection)
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Synthesis.Validate(); err != nil {
		return err
	}
	if err := c.Alerting.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Retention <= 0 {
		return errors.New(errors.ErrConfigInvalid, "telemetry retention must be positive")
	}
	for cat, d := range c.Telemetry.Targets {
		if d <= 0 {
			return errors.Newf(errors.ErrConfigInvalid, "target for %s must be positive", cat)
		}
	}
	if c.GCP.Enabled() && c.GCP.AlertTopic == "" && c.GCP.SnapshotCollection == "" {
		return errors.New(errors.ErrConfigInvalid, "gcp project set but neither alertTopic nor snapshotCollection is configured")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
