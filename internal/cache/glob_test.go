package cache

import (
	"context"
	"errors"
	"testing"
)

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"*", "user/1", true},
		{"user/*", "user/1", true},
		{"*/1", "user/1", true},
		{"user:*", "user:42", true},
		{"user:*", "order:42", false},
		{"*:42", "user:42", true},
		{"u*42", "user:42", true},
		{"?ser:1", "user:1", true},
		{"?ser:1", "ser:1", false},
		{"user:[12]", "user:1", true},
		{"user:[12]", "user:3", false},
		{"user:[0-9]", "user:7", true},
		{"user:[^0-9]", "user:a", true},
		{"user:[^0-9]", "user:7", false},
		{"[]]", "]", true},
		{`\*`, "*", true},
		{`\*`, "x", false},
		{"a**b", "ab", true},
		{"a**b", "axyb", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, tc := range cases {
		got, err := matchGlob(tc.pattern, tc.key)
		if err != nil {
			t.Errorf("matchGlob(%q, %q) unexpected error: %v", tc.pattern, tc.key, err)
			continue
		}
		if got != tc.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

func TestMatchGlobBadPattern(t *testing.T) {
	for _, pattern := range []string{"[", "[a", "[^", `\`, `[\`} {
		if _, err := matchGlob(pattern, "key"); !errors.Is(err, ErrBadPattern) {
			t.Errorf("matchGlob(%q) expected ErrBadPattern, got: %v", pattern, err)
		}
	}
}

func TestInMemoryCache_KeysMatchAcrossSlashes(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()
	c.Put(ctx, "user/1", []byte("a"))
	c.Put(ctx, "user/2", []byte("b"))
	c.Put(ctx, "plain", []byte("c"))

	keys, err := c.Keys(ctx, "*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("pattern * must match keys containing slashes, got %v", keys)
	}

	keys, err = c.Keys(ctx, "user/*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected both user/ keys, got %v", keys)
	}
}

func TestInMemoryCache_KeysBadPattern(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()

	ctx := context.Background()
	c.Put(ctx, "k", []byte("v"))

	if _, err := c.Keys(ctx, "["); !errors.Is(err, ErrBadPattern) {
		t.Fatalf("malformed pattern must surface ErrBadPattern, got: %v", err)
	}
}
