// Package rootconfig loads the orchestrator root configuration
// (orcaops.yml, SPEC_FULL §0): persistence root, max parallelism,
// default TTL/timeout, and optional Redis wiring for the best-effort
// job-event pub/sub layer (SPEC_FULL §1); nothing is cached in Redis. Grounded on
// internal/config's Load-then-Validate idiom (teacher's holt.yml
// loader), generalized from an agent-topology schema to orcaops's own
// settings.
package rootconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Config is the top-level orcaops.yml document.
type Config struct {
	Version        string `yaml:"version"`
	Root           string `yaml:"root"`
	MaxParallel    int    `yaml:"max_parallel,omitempty"`
	DefaultTTL     int    `yaml:"default_ttl_seconds,omitempty"`
	DefaultTimeout int    `yaml:"default_timeout_seconds,omitempty"`
	RedisURL       string `yaml:"redis_url,omitempty"`
}

// defaultRoot mirrors §6's default persistence root when unset.
const defaultRoot = "~/.orcaops"

// Validate fills defaults and rejects out-of-range settings.
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("%w: unsupported config version %q (expected 1.0)", orcaops.ErrValidation, c.Version)
	}

	if c.Root == "" {
		c.Root = defaultRoot
	}

	if c.MaxParallel == 0 {
		c.MaxParallel = 4
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("%w: max_parallel must be >= 1, got %d", orcaops.ErrValidation, c.MaxParallel)
	}

	if c.DefaultTTL == 0 {
		c.DefaultTTL = orcaops.MinTTLSeconds * 60
	}
	if c.DefaultTTL < orcaops.MinTTLSeconds || c.DefaultTTL > orcaops.MaxTTLSeconds {
		return fmt.Errorf("%w: default_ttl_seconds must be in [%d, %d], got %d",
			orcaops.ErrValidation, orcaops.MinTTLSeconds, orcaops.MaxTTLSeconds, c.DefaultTTL)
	}

	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 600
	}
	if c.DefaultTimeout < 1 {
		return fmt.Errorf("%w: default_timeout_seconds must be >= 1, got %d", orcaops.ErrValidation, c.DefaultTimeout)
	}

	return nil
}

// Load reads and validates orcaops.yml from path. A missing file is not
// an error: it returns a Config with defaults applied, since every
// setting here has a sane default (§6).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := &Config{}
		if verr := cfg.Validate(); verr != nil {
			return nil, verr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
