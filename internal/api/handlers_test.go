package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liverpool/kvcache/internal/cache"
)

func newTestMux(t *testing.T) (*http.ServeMux, *cache.InMemoryCache) {
	t.Helper()
	store := cache.NewInMemoryCache()
	t.Cleanup(func() { store.Close() })
	h := &Handler{Cache: store}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, store
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestHandlerPutThenGet(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/cache/session", `{"user":"mo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, mux, http.MethodGet, "/cache/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"user":"mo"}` {
		t.Fatalf("value round trip mismatch: %q", rec.Body.String())
	}
}

func TestHandlerGetMissingReturns404(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/cache/absent", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "not_found" {
		t.Fatalf("expected not_found body, got %v", body)
	}
}

func TestHandlerPutWithTTL(t *testing.T) {
	mux, store := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/cache/k?ttl=60", "v")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ttl, err := store.GetTTL(context.Background(), "k")
	if err != nil {
		t.Fatalf("GetTTL failed: %v", err)
	}
	if !ttl.HasExpiry || ttl.Remaining > time.Minute {
		t.Fatalf("TTL not applied: %+v", ttl)
	}
}

func TestHandlerPutRejectsBadTTL(t *testing.T) {
	mux, store := newTestMux(t)

	for _, ttl := range []string{"0", "-5", "abc"} {
		rec := doRequest(t, mux, http.MethodPost, "/cache/k?ttl="+ttl, "v")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("ttl=%s: expected 400, got %d", ttl, rec.Code)
		}
	}
	if exists, _ := store.Exists(context.Background(), "k"); exists {
		t.Fatal("rejected requests must not write")
	}
}

func TestHandlerUpdatePreservesTTL(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	store.PutWithTTL(ctx, "k", []byte("v1"), time.Minute)

	rec := doRequest(t, mux, http.MethodPut, "/cache/k", "v2")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expected 200, got %d", rec.Code)
	}

	val, _ := store.Get(ctx, "k")
	if string(val) != "v2" {
		t.Fatalf("value not updated: %q", string(val))
	}
	ttl, _ := store.GetTTL(ctx, "k")
	if !ttl.HasExpiry {
		t.Fatal("update must preserve the TTL")
	}
}

func TestHandlerUpdateAbsentReturns404(t *testing.T) {
	mux, store := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPut, "/cache/absent", "v")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if exists, _ := store.Exists(context.Background(), "absent"); exists {
		t.Fatal("failed update must not create the key")
	}
}

func TestHandlerDelete(t *testing.T) {
	mux, store := newTestMux(t)
	store.Put(context.Background(), "k", []byte("v"))

	rec := doRequest(t, mux, http.MethodDelete, "/cache/k", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodDelete, "/cache/k", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", rec.Code)
	}
}

func TestHandlerGetTTLThreeStates(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	rec := doRequest(t, mux, http.MethodGet, "/cache/absent/ttl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["exists"] != false {
		t.Fatalf("absent key: expected exists=false, got %v", body)
	}

	store.Put(ctx, "forever", []byte("v"))
	rec = doRequest(t, mux, http.MethodGet, "/cache/forever/ttl", "")
	body = decodeBody(t, rec)
	if body["exists"] != true || body["persistent"] != true {
		t.Fatalf("persistent key: unexpected body %v", body)
	}

	store.PutWithTTL(ctx, "expiring", []byte("v"), time.Minute)
	rec = doRequest(t, mux, http.MethodGet, "/cache/expiring/ttl", "")
	body = decodeBody(t, rec)
	if body["exists"] != true {
		t.Fatalf("expiring key: unexpected body %v", body)
	}
	if _, ok := body["ttl"]; !ok {
		t.Fatalf("expiring key must report remaining ttl, got %v", body)
	}
}

func TestHandlerUpdateTTL(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	rec := doRequest(t, mux, http.MethodPut, "/cache/k/ttl", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ttl param: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodPut, "/cache/absent/ttl?ttl=60", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("absent key: expected 404, got %d", rec.Code)
	}

	store.Put(ctx, "k", []byte("v"))
	rec = doRequest(t, mux, http.MethodPut, "/cache/k/ttl?ttl=60", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ttl, _ := store.GetTTL(ctx, "k")
	if !ttl.HasExpiry {
		t.Fatal("TTL should now be set")
	}
}

func TestHandlerExists(t *testing.T) {
	mux, store := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/cache/k/exists", "")
	if decodeBody(t, rec)["exists"] != false {
		t.Fatal("absent key should report exists=false")
	}

	store.Put(context.Background(), "k", []byte("v"))
	rec = doRequest(t, mux, http.MethodGet, "/cache/k/exists", "")
	if decodeBody(t, rec)["exists"] != true {
		t.Fatal("present key should report exists=true")
	}
}

func TestHandlerListKeys(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	rec := doRequest(t, mux, http.MethodGet, "/cache/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty store should list [], got %q", rec.Body.String())
	}

	store.Put(ctx, "user:1", []byte("a"))
	store.Put(ctx, "order:1", []byte("b"))

	rec = doRequest(t, mux, http.MethodGet, "/cache/keys?pattern=user:*", "")
	var keys []string
	if err := json.NewDecoder(rec.Body).Decode(&keys); err != nil {
		t.Fatalf("failed to decode keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "user:1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

// faultyCache fails every operation with a transport-style error.
type faultyCache struct {
	cache.Cache
}

var errBackend = errors.New("cache: redis get: connection refused")

func (f *faultyCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errBackend
}

func (f *faultyCache) Delete(ctx context.Context, key string) (bool, error) {
	return false, errBackend
}

func (f *faultyCache) Ping(ctx context.Context) error { return errBackend }

func TestHandlerBackendFaultReturns502(t *testing.T) {
	h := &Handler{Cache: &faultyCache{}}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := doRequest(t, mux, http.MethodGet, "/cache/k", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "cache_unavailable" {
		t.Fatal("fault body must be distinct from a miss")
	}

	rec = doRequest(t, mux, http.MethodDelete, "/cache/k", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on delete fault, got %d", rec.Code)
	}
}

func TestHandlerHealth(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	h := &Handler{Cache: &faultyCache{}}
	downMux := http.NewServeMux()
	h.RegisterRoutes(downMux)
	rec = doRequest(t, downMux, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is down, got %d", rec.Code)
	}
}

func TestHandlerKeysRouteNotShadowed(t *testing.T) {
	// "keys" is a reserved path segment; a key literally named "keys"
	// is served by the listing route instead.
	mux, store := newTestMux(t)
	store.Put(context.Background(), "plain", []byte("v"))

	rec := doRequest(t, mux, http.MethodGet, "/cache/keys", "")
	var keys []string
	if err := json.NewDecoder(rec.Body).Decode(&keys); err != nil {
		t.Fatalf("expected a key listing, got %q", rec.Body.String())
	}
}

func TestHandlerGetTTLSubSecondRoundsUp(t *testing.T) {
	mux, store := newTestMux(t)

	store.PutWithTTL(context.Background(), "k", []byte("v"), 500*time.Millisecond)

	rec := doRequest(t, mux, http.MethodGet, "/cache/k/ttl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	ttl, ok := body["ttl"].(float64)
	if !ok {
		t.Fatalf("expected a ttl field, got %v", body)
	}
	if ttl < 1 {
		t.Fatalf("a live key must never report ttl 0, got %v", ttl)
	}
}

func TestHandlerListKeysBadPattern(t *testing.T) {
	mux, store := newTestMux(t)
	store.Put(context.Background(), "k", []byte("v"))

	rec := doRequest(t, mux, http.MethodGet, "/cache/keys?pattern=%5B", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed pattern: expected 400, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "invalid_request" {
		t.Fatal("malformed pattern must map to invalid_request")
	}
}
