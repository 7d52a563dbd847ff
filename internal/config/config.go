// Package config loads kvcache configuration from defaults, an optional
// YAML or JSON file, and KVCACHE_* environment overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liverpool/kvcache/internal/cache"
	"github.com/liverpool/kvcache/internal/observability"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	AccessLogPath   string        `yaml:"access_log_path" json:"access_log_path"`
}

// RateLimitConfig holds per-client token-bucket settings for the HTTP
// surface.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server" json:"server"`
	Redis     cache.RedisConfig    `yaml:"redis" json:"redis"`
	Telemetry observability.Config `yaml:"telemetry" json:"telemetry"`
	RateLimit RateLimitConfig      `yaml:"ratelimit" json:"ratelimit"`
}

// Default returns a Config with sensible defaults. The pool defaults
// mirror a small production deployment: 25 pooled connections, 10 kept
// idle, 500ms maximum wait for a free connection.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			LogLevel:        "info",
		},
		Redis: cache.RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     25,
			MinIdleConns: 10,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  500 * time.Millisecond,
		},
		Telemetry: observability.Config{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "kvcache",
			SampleRate:  1.0,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			BurstSize:         200,
		},
	}
}

// Load builds the effective configuration: defaults, then the file at
// path (if non-empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	return nil
}

// applyEnv applies KVCACHE_* environment overrides. Malformed values are
// ignored in favor of the current setting.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KVCACHE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("KVCACHE_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("KVCACHE_ACCESS_LOG"); v != "" {
		cfg.Server.AccessLogPath = v
	}
	if v := os.Getenv("KVCACHE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("KVCACHE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KVCACHE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("KVCACHE_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("KVCACHE_REDIS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.PoolSize = n
		}
	}
	if v := os.Getenv("KVCACHE_REDIS_MIN_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.MinIdleConns = n
		}
	}
	if v := os.Getenv("KVCACHE_REDIS_POOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.PoolTimeout = d
		}
	}
	if v := os.Getenv("KVCACHE_REDIS_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.DialTimeout = d
		}
	}
	if v := os.Getenv("KVCACHE_TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("KVCACHE_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("KVCACHE_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = v == "true" || v == "1"
	}
}

// Validate checks the configuration for values that would fail at
// runtime in non-obvious ways.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("redis.db must be between 0 and 15, got: %d", c.Redis.DB)
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be greater than 0, got: %d", c.Redis.PoolSize)
	}
	if c.Redis.MinIdleConns < 0 {
		return fmt.Errorf("redis.min_idle_conns must be non-negative, got: %d", c.Redis.MinIdleConns)
	}
	if c.Redis.MinIdleConns > c.Redis.PoolSize {
		return fmt.Errorf("redis.min_idle_conns (%d) cannot exceed redis.pool_size (%d)",
			c.Redis.MinIdleConns, c.Redis.PoolSize)
	}
	if c.Redis.DialTimeout <= 0 || c.Redis.ReadTimeout <= 0 || c.Redis.WriteTimeout <= 0 {
		return fmt.Errorf("redis timeouts must be greater than 0")
	}
	if c.Redis.PoolTimeout <= 0 {
		return fmt.Errorf("redis.pool_timeout must be greater than 0, got: %v", c.Redis.PoolTimeout)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be in [0,1], got: %v", c.Telemetry.SampleRate)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("ratelimit.requests_per_second must be greater than 0")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("ratelimit.burst_size must be greater than 0")
		}
	}
	return nil
}
