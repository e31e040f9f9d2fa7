// Package config loads the CLI's YAML configuration file and applies
// defaults so a missing or sparse file still yields a usable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings ("10s", "1.5m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// SearchConfig tunes the search client.
type SearchConfig struct {
	Region        string            `yaml:"region"`
	Timeout       Duration          `yaml:"timeout"`
	MaxAttempts   int               `yaml:"max_attempts"`
	RetryStatuses []int             `yaml:"retry_statuses"`
	BaseDelay     Duration          `yaml:"base_delay"`
	RateCapacity  float64           `yaml:"rate_capacity"`
	RefillRate    float64           `yaml:"refill_rate"`
	Fingerprint   string            `yaml:"fingerprint"`
	UserAgents    []string          `yaml:"user_agents"`
	Headers       map[string]string `yaml:"headers"`
}

// ProxyConfig selects either a single proxy or a rotating pool file.
type ProxyConfig struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
}

// HistoryConfig selects the audit log backend.
type HistoryConfig struct {
	// Driver is "sqlite", "postgres", "json" or empty to disable history.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Region:  "wt-wt",
			Timeout: Duration(10 * time.Second),
		},
		Metrics: MetricsConfig{Port: 9090},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Search.Region == "" {
		c.Search.Region = "wt-wt"
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = Duration(10 * time.Second)
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
