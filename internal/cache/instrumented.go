package cache

import (
	"context"
	"errors"
	"time"

	"github.com/liverpool/kvcache/internal/metrics"
	"github.com/liverpool/kvcache/internal/observability"
)

// Instrumented decorates a Cache with Prometheus metrics and OpenTelemetry
// spans. Semantics of the wrapped cache are unchanged.
type Instrumented struct {
	next Cache
}

// WithInstrumentation wraps next with per-operation metrics and tracing.
func WithInstrumentation(next Cache) *Instrumented {
	return &Instrumented{next: next}
}

// outcome labels for the operation counter.
const (
	outcomeOK      = "ok"
	outcomeMiss    = "miss"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrNotFound):
		return outcomeMiss
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidTTL), errors.Is(err, ErrBadPattern):
		return outcomeInvalid
	default:
		return outcomeError
	}
}

// classifyApplied maps boolean-result operations: false with a nil error
// is a miss (key absent), not a failure.
func classifyApplied(applied bool, err error) string {
	if err == nil && !applied {
		return outcomeMiss
	}
	return classify(err)
}

func (i *Instrumented) observe(ctx context.Context, op, key string) (context.Context, func(outcome string, err error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "cache."+op,
		observability.AttrCacheOp.String(op),
		observability.AttrCacheKey.String(key),
	)
	return ctx, func(outcome string, err error) {
		if err != nil && outcome == outcomeError {
			observability.SetSpanError(span, err)
		}
		span.End()
		metrics.RecordCacheOp(op, outcome, time.Since(start))
	}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, done := i.observe(ctx, "get", key)
	val, err := i.next.Get(ctx, key)
	done(classify(err), err)
	return val, err
}

func (i *Instrumented) Put(ctx context.Context, key string, value []byte) error {
	ctx, done := i.observe(ctx, "put", key)
	err := i.next.Put(ctx, key, value)
	done(classify(err), err)
	return err
}

func (i *Instrumented) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, done := i.observe(ctx, "put", key)
	err := i.next.PutWithTTL(ctx, key, value, ttl)
	done(classify(err), err)
	return err
}

func (i *Instrumented) Update(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, done := i.observe(ctx, "update", key)
	applied, err := i.next.Update(ctx, key, value)
	done(classifyApplied(applied, err), err)
	return applied, err
}

func (i *Instrumented) UpdateWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, done := i.observe(ctx, "update", key)
	applied, err := i.next.UpdateWithTTL(ctx, key, value, ttl)
	done(classifyApplied(applied, err), err)
	return applied, err
}

func (i *Instrumented) Delete(ctx context.Context, key string) (bool, error) {
	ctx, done := i.observe(ctx, "delete", key)
	applied, err := i.next.Delete(ctx, key)
	done(classifyApplied(applied, err), err)
	return applied, err
}

func (i *Instrumented) UpdateTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, done := i.observe(ctx, "update_ttl", key)
	applied, err := i.next.UpdateTTL(ctx, key, ttl)
	done(classifyApplied(applied, err), err)
	return applied, err
}

func (i *Instrumented) Exists(ctx context.Context, key string) (bool, error) {
	ctx, done := i.observe(ctx, "exists", key)
	found, err := i.next.Exists(ctx, key)
	done(classify(err), err)
	return found, err
}

func (i *Instrumented) GetTTL(ctx context.Context, key string) (TTL, error) {
	ctx, done := i.observe(ctx, "get_ttl", key)
	ttl, err := i.next.GetTTL(ctx, key)
	done(classify(err), err)
	return ttl, err
}

func (i *Instrumented) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, done := i.observe(ctx, "keys", pattern)
	keys, err := i.next.Keys(ctx, pattern)
	done(classify(err), err)
	return keys, err
}

func (i *Instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}
