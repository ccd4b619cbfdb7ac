// Package config loads aptrewind's configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	// LogDir is where dpkg and apt logs live.
	LogDir string `yaml:"log_dir"`
	// ArchiveURL is the historical package archive; empty selects
	// snapshot.debian.org.
	ArchiveURL string `yaml:"archive_url,omitempty"`
	// DownloadDir receives fetched .deb artifacts; empty derives a
	// per-target-time directory under the system temp dir.
	DownloadDir string `yaml:"download_dir,omitempty"`
	// CachePath is the archive lookup cache database; empty disables it.
	CachePath string `yaml:"cache_path,omitempty"`
	// JournalDir receives per-run audit journals; empty disables them.
	JournalDir string `yaml:"journal_dir,omitempty"`
	// PolicyDir holds extra .rego policy files loaded on top of the
	// built-in protection policy.
	PolicyDir string `yaml:"policy_dir,omitempty"`
	// Workers bounds concurrent archive lookups and downloads.
	Workers int `yaml:"workers,omitempty"`
	// Protected lists package names no plan may touch.
	Protected []string `yaml:"protected,omitempty"`
	// Rules defines execution behavior rules.
	Rules Rules `yaml:"rules,omitempty"`
}

// Rules defines behavior rules
type Rules struct {
	// ContinueOnFailure keeps going after a failed install (best-effort
	// rollback). Defaults to true.
	ContinueOnFailure bool `yaml:"continue_on_failure"`
	// Force proceeds even when some actions failed to resolve.
	Force bool `yaml:"force"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogDir: "/var/log",
		Rules:  Rules{ContinueOnFailure: true},
	}
}

// LoadConfig loads configuration from file, filling defaults for anything
// the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	return nil
}
