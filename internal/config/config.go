// internal/config/config.go

// Package config loads and validates the top-level YAML configuration
// that wires the whole pipeline together.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steltix/newsgrab/internal/browser"
	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/extract"
	"github.com/steltix/newsgrab/internal/fetch"
	"github.com/steltix/newsgrab/internal/identity"
	"github.com/steltix/newsgrab/internal/monitoring"
	"github.com/steltix/newsgrab/internal/output"
)

// Config is the full pipeline configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	Domain   domain.Config   `yaml:"domain" json:"domain"`
	Identity identity.Config `yaml:"identity" json:"identity"`
	Fetch    fetch.Config    `yaml:"fetch" json:"fetch"`
	Browser  browser.Config  `yaml:"browser" json:"browser"`
	Extract  extract.Config  `yaml:"extract" json:"extract"`

	// DeadTTL is how long 404/410 URLs stay negative-cached. Zero selects
	// the package default.
	DeadTTL time.Duration `yaml:"dead_ttl" json:"dead_ttl"`

	Output  *output.Config           `yaml:"output,omitempty" json:"output,omitempty"`
	Server  ServerConfig             `yaml:"server" json:"server"`
	Metrics monitoring.MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig selects log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Address      string        `yaml:"address" json:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// Default returns a configuration with every section at its defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFromFile loads and validates a YAML configuration file.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read configuration file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromReader loads and validates YAML configuration from a reader.
func LoadFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads and validates YAML configuration. ${VAR} references
// are expanded from the environment before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML configuration: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.DeadTTL == 0 {
		c.DeadTTL = deadcache.DefaultTTL
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Extractions can legitimately take a browser render plus pacing.
		c.Server.WriteTimeout = 120 * time.Second
	}
}

// Validate checks cross-field constraints the section types cannot see.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}

	if c.Domain.MinDelay < 0 || c.Domain.MaxDelay < 0 {
		return fmt.Errorf("pacing delays cannot be negative")
	}
	if c.Domain.MaxDelay != 0 && c.Domain.MinDelay > c.Domain.MaxDelay {
		return fmt.Errorf("domain.min_delay (%s) exceeds domain.max_delay (%s)",
			c.Domain.MinDelay, c.Domain.MaxDelay)
	}
	if c.Identity.RotationJitter < 0 || c.Identity.RotationJitter >= 1 {
		return fmt.Errorf("identity.rotation_jitter must be in [0, 1)")
	}
	if c.Fetch.GlobalRateLimit < 0 {
		return fmt.Errorf("fetch.global_rate_limit cannot be negative")
	}
	if c.DeadTTL < 0 {
		return fmt.Errorf("dead_ttl cannot be negative")
	}

	if c.Output != nil {
		if _, err := output.NewManager(*c.Output); err != nil {
			return err
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} with the environment value, leaving unset
// references intact so validation reports them in context.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
