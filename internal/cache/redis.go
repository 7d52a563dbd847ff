package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache backed by a remote Redis instance. The
// connection pool is shared by all callers; a caller that cannot obtain
// a connection within PoolTimeout receives a pool timeout error rather
// than blocking indefinitely.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection and pool settings for the Redis backend.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolTimeout  time.Duration `yaml:"pool_timeout"`
}

// NewRedisCache connects to Redis and verifies connectivity before
// returning. The returned cache owns the client and must be closed.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewRedisCacheFromClient wraps an existing client. The caller keeps
// ownership of the client lifecycle unless Close is called here.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Client exposes the underlying client so sibling components (e.g. the
// rate limiter) can share the connection pool.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	// Unconditional SET without expiry also discards any prior TTL.
	if err := c.client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Update uses SET XX KEEPTTL: a single conditional write that only
// applies when the key exists and carries the current expiry over
// unchanged. This avoids the read-TTL-then-write sequence and its race
// against concurrent writers entirely.
func (c *RedisCache) Update(ctx context.Context, key string, value []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	ok, err := c.client.SetXX(ctx, c.key(key), value, redis.KeepTTL).Result()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) UpdateWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	ok, err := c.client.SetXX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) UpdateTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	ok, err := c.client.Expire(ctx, c.key(key), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("expire %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) GetTTL(ctx context.Context, key string) (TTL, error) {
	if err := validateKey(key); err != nil {
		return TTL{}, err
	}
	d, err := c.client.TTL(ctx, c.key(key)).Result()
	if err != nil {
		return TTL{}, fmt.Errorf("ttl %s: %w", key, err)
	}
	// go-redis passes the TTL sentinels through as raw durations:
	// -2 means the key does not exist, -1 means no expiry is set.
	switch {
	case d == -2:
		return TTL{}, ErrNotFound
	case d < 0:
		return TTL{HasExpiry: false}, nil
	default:
		return TTL{HasExpiry: true, Remaining: d}, nil
	}
}

// scanCount is the page size hint passed to SCAN.
const scanCount = 256

// Keys enumerates matching keys with cursor-paged SCAN rather than the
// blocking KEYS command, checking for cancellation between pages.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	var (
		keys   []string
		cursor uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, next, err := c.client.Scan(ctx, cursor, c.prefix+pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range page {
			keys = append(keys, strings.TrimPrefix(k, c.prefix))
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
