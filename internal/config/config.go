// Package config loads sieve configuration from a yaml file with environment
// overrides (SIEVE_* variables).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// CacheConfig selects and parameterizes the result cache store.
type CacheConfig struct {
	// Backend is one of "redis", "sqlite", "postgres", or "none".
	Backend    string `mapstructure:"backend"`
	URL        string `mapstructure:"url"`
	PoolSize   int    `mapstructure:"pool_size"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// SearchConfig parameterizes the engine fan-out.
type SearchConfig struct {
	Engines     []string `mapstructure:"engines"`
	TimeoutSecs uint8    `mapstructure:"timeout_secs"`
	// RPS limits per-engine upstream request rate (0 = unlimited).
	RPS    float64 `mapstructure:"rps"`
	Jitter float64 `mapstructure:"jitter"`
	// Fingerprint is the TLS client hello profile for upstream fetches.
	Fingerprint string   `mapstructure:"fingerprint"`
	UserAgents  []string `mapstructure:"user_agents"`
}

// Config is the root configuration.
type Config struct {
	Cache       CacheConfig  `mapstructure:"cache"`
	Search      SearchConfig `mapstructure:"search"`
	MetricsPort int          `mapstructure:"metrics_port"`
}

// Load reads configuration from path (optional, "" means defaults plus
// environment only) and applies SIEVE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.pool_size", 4)
	v.SetDefault("cache.ttl_seconds", 60)
	v.SetDefault("search.engines", []string{"duckduckgo"})
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("search.rps", 0.0)
	v.SetDefault("search.jitter", 0.0)
	v.SetDefault("search.fingerprint", "chrome")
	v.SetDefault("metrics_port", 0)

	v.SetEnvPrefix("SIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "none", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend != "none" && c.Cache.URL == "" {
		return fmt.Errorf("config: cache backend %q requires cache.url", c.Cache.Backend)
	}
	if c.Cache.PoolSize <= 0 {
		return fmt.Errorf("config: cache.pool_size must be positive, got %d", c.Cache.PoolSize)
	}
	if len(c.Search.Engines) == 0 {
		return fmt.Errorf("config: at least one search engine is required")
	}
	return nil
}
