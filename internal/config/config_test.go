package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.Redis.PoolSize != 25 || cfg.Redis.MinIdleConns != 10 {
		t.Errorf("unexpected default pool: size=%d idle=%d", cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	}
	if cfg.Redis.PoolTimeout != 500*time.Millisecond {
		t.Errorf("unexpected default pool timeout: %v", cfg.Redis.PoolTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvcache.yaml")
	content := `
server:
  addr: ":9090"
  log_level: debug
redis:
  addr: "redis.internal:6379"
  db: 3
  key_prefix: "liverpool:"
  pool_size: 50
  min_idle_conns: 20
ratelimit:
  enabled: true
  requests_per_second: 10
  burst_size: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr not loaded: %s", cfg.Server.Addr)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level not loaded: %s", cfg.Server.LogLevel)
	}
	if cfg.Redis.Addr != "redis.internal:6379" || cfg.Redis.DB != 3 {
		t.Errorf("redis settings not loaded: %+v", cfg.Redis)
	}
	if cfg.Redis.KeyPrefix != "liverpool:" {
		t.Errorf("key prefix not loaded: %s", cfg.Redis.KeyPrefix)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.BurstSize != 20 {
		t.Errorf("ratelimit not loaded: %+v", cfg.RateLimit)
	}
	// Unset fields keep their defaults.
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("default read timeout lost: %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvcache.json")
	content := `{"server":{"addr":":7070"},"redis":{"db":2}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Redis.DB != 2 {
		t.Errorf("json settings not loaded: addr=%s db=%d", cfg.Server.Addr, cfg.Redis.DB)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvcache.toml")
	os.WriteFile(path, []byte("x = 1"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for unsupported format")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/kvcache.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvcache.yaml")
	os.WriteFile(path, []byte("redis:\n  addr: from-file:6379\n  db: 1\n"), 0o644)

	t.Setenv("KVCACHE_REDIS_ADDR", "from-env:6379")
	t.Setenv("KVCACHE_REDIS_DB", "4")
	t.Setenv("KVCACHE_HTTP_ADDR", ":6060")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr != "from-env:6379" {
		t.Errorf("env should win over file, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.DB != 4 {
		t.Errorf("env db should win, got %d", cfg.Redis.DB)
	}
	if cfg.Server.Addr != ":6060" {
		t.Errorf("env addr should win, got %s", cfg.Server.Addr)
	}
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KVCACHE_REDIS_DB", "not-a-number")
	t.Setenv("KVCACHE_REDIS_POOL_TIMEOUT", "bogus")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("malformed env db should be ignored, got %d", cfg.Redis.DB)
	}
	if cfg.Redis.PoolTimeout != 500*time.Millisecond {
		t.Errorf("malformed env timeout should be ignored, got %v", cfg.Redis.PoolTimeout)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"db out of range", func(c *Config) { c.Redis.DB = 16 }},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }},
		{"zero pool size", func(c *Config) { c.Redis.PoolSize = 0 }},
		{"idle exceeds pool", func(c *Config) { c.Redis.MinIdleConns = 100 }},
		{"zero dial timeout", func(c *Config) { c.Redis.DialTimeout = 0 }},
		{"zero pool timeout", func(c *Config) { c.Redis.PoolTimeout = 0 }},
		{"sample rate above 1", func(c *Config) { c.Telemetry.SampleRate = 1.5 }},
		{"ratelimit without rate", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerSecond = 0
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
