// Package cache defines the key-value cache contract and its backends.
// Values are opaque byte slices (typically JSON), keys are non-empty
// strings, and every entry may carry an expiry enforced by the backend.
// The package distinguishes three outcomes on every read path: the key
// exists, the key is absent, or the backend could not be reached. Key
// absence is never reported as a transport error and vice versa.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist in the cache.
	ErrNotFound = errors.New("cache: key not found")

	// ErrEmptyKey is returned before any round trip when a caller passes
	// an empty key.
	ErrEmptyKey = errors.New("cache: empty key")

	// ErrInvalidTTL is returned before any round trip when an operation
	// that requires a TTL receives a non-positive one.
	ErrInvalidTTL = errors.New("cache: ttl must be positive")

	// ErrBadPattern is returned by Keys for a malformed glob pattern.
	ErrBadPattern = errors.New("cache: malformed key pattern")
)

// TTL describes the expiry of an existing key. When HasExpiry is false
// the key is persistent and Remaining is meaningless.
type TTL struct {
	HasExpiry bool
	Remaining time.Duration
}

// Cache is the facade over a remote key-value store. All operations are
// safe for concurrent use and perform live round trips; nothing is
// cached in-process.
//
// Boolean results report whether the operation applied: false with a nil
// error means the key was absent, false with a non-nil error means the
// backend failed. The two are never conflated.
type Cache interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a persistent entry, overwriting any existing value and
	// clearing any existing expiry.
	Put(ctx context.Context, key string, value []byte) error

	// PutWithTTL stores an entry that expires after ttl, overwriting any
	// existing value and expiry. ttl must be positive.
	PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update overwrites the value of an existing key while leaving its
	// remaining expiry untouched. Returns false if the key is absent;
	// an absent key is never created.
	Update(ctx context.Context, key string, value []byte) (bool, error)

	// UpdateWithTTL overwrites the value of an existing key and replaces
	// its expiry with ttl. Returns false if the key is absent.
	UpdateWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a key. Returns false if the key was already absent;
	// deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// UpdateTTL replaces the expiry of an existing key without touching
	// its value. Returns false if the key is absent.
	UpdateTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Exists reports whether the key exists. No side effects.
	Exists(ctx context.Context, key string) (bool, error)

	// GetTTL reports the expiry state of a key: ErrNotFound when the key
	// is absent, HasExpiry=false when it is persistent, otherwise the
	// remaining duration.
	GetTTL(ctx context.Context, key string) (TTL, error)

	// Keys returns the keys matching pattern ("*" matches all). The scan
	// honors ctx cancellation; on large key spaces callers should bound
	// it with a deadline.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// validateKey rejects malformed keys before any network round trip.
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

// validateTTL rejects non-positive TTLs before any network round trip.
func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
