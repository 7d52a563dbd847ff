package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liverpool/kvcache/internal/logging"
)

// LocalBackend is an in-process token bucket backend. It is only an
// approximation of the distributed limiter: each process enforces the
// full budget independently.
type LocalBackend struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
}

type localBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewLocalBackend creates an in-memory token bucket backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{buckets: make(map[string]*localBucket)}
}

func (b *LocalBackend) CheckRateLimit(_ context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	bucket, ok := b.buckets[key]
	if !ok {
		bucket = &localBucket{tokens: float64(maxTokens), lastRefill: now}
		b.buckets[key] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens = math.Min(float64(maxTokens), bucket.tokens+elapsed*refillRate)
	bucket.lastRefill = now

	if bucket.tokens < float64(requested) {
		return false, int(bucket.tokens), nil
	}
	bucket.tokens -= float64(requested)
	return true, int(bucket.tokens), nil
}

// probeInterval is the minimum time between health probes of the
// primary backend once degraded.
const probeInterval = 5 * time.Second

// FallbackBackend wraps a primary Backend (typically Redis) with a local
// token bucket fallback. On primary error it degrades to local limiting
// and periodically probes the primary to restore distributed behaviour.
type FallbackBackend struct {
	primary   Backend
	local     *LocalBackend
	degraded  atomic.Bool
	probeMu   sync.Mutex
	lastProbe atomic.Value // time.Time
}

// NewFallbackBackend creates a backend that degrades to local buckets
// when the primary is unavailable.
func NewFallbackBackend(primary Backend) *FallbackBackend {
	fb := &FallbackBackend{
		primary: primary,
		local:   NewLocalBackend(),
	}
	fb.lastProbe.Store(time.Time{})
	return fb
}

func (f *FallbackBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	if f.degraded.Load() {
		if last, ok := f.lastProbe.Load().(time.Time); ok && time.Since(last) > probeInterval {
			go f.probe(key, maxTokens, refillRate)
		}
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}

	allowed, remaining, err := f.primary.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	if err != nil {
		logging.Op().Warn("rate-limit backend error, degrading to local buckets", "error", err)
		f.degraded.Store(true)
		f.lastProbe.Store(time.Now())
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}
	return allowed, remaining, nil
}

func (f *FallbackBackend) probe(key string, maxTokens int, refillRate float64) {
	if !f.probeMu.TryLock() {
		return
	}
	defer f.probeMu.Unlock()

	f.lastProbe.Store(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Zero-token probe: touches the bucket without consuming budget.
	if _, _, err := f.primary.CheckRateLimit(ctx, key, maxTokens, refillRate, 0); err == nil {
		f.degraded.Store(false)
		logging.Op().Info("rate-limit backend recovered, resuming distributed limiting")
	}
}
