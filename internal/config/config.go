// Package config loads marketcache's YAML configuration file, following
// the teacher's internal/config/providers.go layout: one struct per
// concern, yaml-tagged fields, loaded with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackoffConfig holds retry-spacing settings read from YAML. Nothing reads
// these fields; retry spacing comes from the fixed schedules in package
// upstream.
type BackoffConfig struct {
	BaseMS   int `yaml:"base_ms"`
	MaxMS    int `yaml:"max_ms"`
	JitterMS int `yaml:"jitter_ms"`
}

// CircuitConfig holds one endpoint's breaker settings read from YAML.
// Nothing reads OpenWindowMS; every breaker uses the open window of the
// circuit.Manager that created it.
type CircuitConfig struct {
	OpenWindowMS int `yaml:"open_window_ms"`
}

// ProviderEndpointConfig describes a single named upstream endpoint.
type ProviderEndpointConfig struct {
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
	Backoff  BackoffConfig `yaml:"backoff"`
	Circuit  CircuitConfig `yaml:"circuit"`
}

// ProviderConfig is a logical data source (for example "prices") with an
// ordered fallback chain of endpoints.
type ProviderConfig struct {
	Name      string                   `yaml:"name"`
	Endpoints []ProviderEndpointConfig `yaml:"endpoints"`
}

// CacheConfig configures the two cache tiers and the artifact cache.
type CacheConfig struct {
	L1MaxEntries     int    `yaml:"l1_max_entries"`
	L1IdleTTLSeconds int    `yaml:"l1_idle_ttl_seconds"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
	KeyPrefix        string `yaml:"key_prefix"`

	ArtifactMaxEntryMB int `yaml:"artifact_max_entry_mb"`
	ArtifactMaxTotalMB int `yaml:"artifact_max_total_mb"`
	ArtifactWarnMB     int `yaml:"artifact_warn_mb"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	StreamTickMillis int    `yaml:"stream_tick_millis"`
}

// Config is the full, loaded configuration tree.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Cache     CacheConfig      `yaml:"cache"`
	Providers []ProviderConfig `yaml:"providers"`
}

// L1IdleTTL returns the configured L1 idle window as a time.Duration.
func (c CacheConfig) L1IdleTTL() time.Duration {
	return time.Duration(c.L1IdleTTLSeconds) * time.Second
}

// RequestTimeout returns the configured request timeout as a time.Duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// StreamTick returns the configured dashboard broadcast cadence as a
// time.Duration.
func (c ServerConfig) StreamTick() time.Duration {
	return time.Duration(c.StreamTickMillis) * time.Millisecond
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutMS == 0 {
		cfg.Server.RequestTimeoutMS = 10_000
	}
	if cfg.Server.StreamTickMillis == 0 {
		cfg.Server.StreamTickMillis = 1000
	}
	if cfg.Cache.L1MaxEntries == 0 {
		cfg.Cache.L1MaxEntries = 10_000
	}
	if cfg.Cache.L1IdleTTLSeconds == 0 {
		cfg.Cache.L1IdleTTLSeconds = 1800
	}
	if cfg.Cache.ArtifactMaxEntryMB == 0 {
		cfg.Cache.ArtifactMaxEntryMB = 8
	}
	if cfg.Cache.ArtifactMaxTotalMB == 0 {
		cfg.Cache.ArtifactMaxTotalMB = 256
	}
}
