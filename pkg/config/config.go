// Package config provides configuration file support for gryt.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

// ExecutionMode controls when mutating contract operations report that a
// sync with the remote authority is due.
type ExecutionMode string

const (
	// ModeLocal never schedules a sync; push/pull are manual only.
	ModeLocal ExecutionMode = "local"
	// ModeCloud schedules a sync after every mutation.
	ModeCloud ExecutionMode = "cloud"
	// ModeHybrid schedules a sync on promotion and evolution completion.
	ModeHybrid ExecutionMode = "hybrid"
)

// Config represents the gryt configuration.
type Config struct {
	ExecutionMode ExecutionMode `yaml:"execution_mode"`
	Remote        RemoteConfig  `yaml:"remote"`
	Gates         GatesConfig   `yaml:"gates"`
	Snapshots     SnapshotsConfig `yaml:"snapshots"`
	Logging       LoggingConfig `yaml:"logging"`
	Webhooks      webhook.Config `yaml:"webhooks"`
}

// RemoteConfig holds the remote authority endpoint and credentials.
// Either basic credentials or an HMAC key pair may be configured.
type RemoteConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	APIKeyID     string `yaml:"api_key_id,omitempty"`
	APIKeySecret string `yaml:"api_key_secret,omitempty"`
}

// HasCredentials reports whether any remote credentials are configured.
func (r RemoteConfig) HasCredentials() bool {
	return (r.Username != "" && r.Password != "") || (r.APIKeyID != "" && r.APIKeySecret != "")
}

// GatesConfig configures the promotion gate policy.
type GatesConfig struct {
	// MinEvolutions is the minimum number of terminal evolutions
	// required by the default gate set. 0 disables the gate.
	MinEvolutions int `yaml:"min_evolutions"`
	// Enabled names the gates run against regular generations, resolved
	// through the gate registry. Empty means the default set.
	Enabled []string `yaml:"enabled,omitempty"`
}

// SnapshotsConfig configures snapshot retention.
type SnapshotsConfig struct {
	KeepMax int `yaml:"keep_max"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ExecutionMode: ModeHybrid,
		Gates: GatesConfig{
			MinEvolutions: 1,
		},
		Snapshots: SnapshotsConfig{
			KeepMax: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from .gryt/config.yaml under repoRoot.
// Returns default config if the file doesn't exist.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()
	cfgPath := filepath.Join(repoRoot, ".gryt", "config.yaml")

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return cfg, nil // No config file is OK, use defaults
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.ExecutionMode == "" {
		cfg.ExecutionMode = ModeHybrid
	}

	return cfg, nil
}

// Save writes configuration to .gryt/config.yaml under repoRoot.
func Save(repoRoot string, cfg *Config) error {
	cfgPath := filepath.Join(repoRoot, ".gryt", "config.yaml")

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
