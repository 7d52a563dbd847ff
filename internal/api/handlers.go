// Package api exposes the cache facade over HTTP: resource-style
// endpoints keyed by cache key, with TTLs passed as a `ttl` query
// parameter in seconds.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/liverpool/kvcache/internal/cache"
)

// maxValueBytes bounds request bodies; values are cache payloads, not
// uploads.
const maxValueBytes = 10 << 20

// Handler serves the cache endpoints.
type Handler struct {
	Cache cache.Cache
}

// RegisterRoutes registers all cache routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cache/keys", h.ListKeys)
	mux.HandleFunc("GET /cache/{key}", h.GetValue)
	mux.HandleFunc("POST /cache/{key}", h.PutValue)
	mux.HandleFunc("PUT /cache/{key}", h.UpdateValue)
	mux.HandleFunc("DELETE /cache/{key}", h.DeleteValue)
	mux.HandleFunc("GET /cache/{key}/ttl", h.GetTTL)
	mux.HandleFunc("PUT /cache/{key}/ttl", h.UpdateTTL)
	mux.HandleFunc("GET /cache/{key}/exists", h.CheckExists)
	mux.HandleFunc("GET /health", h.Health)
}

// ttlParam parses the optional `ttl` query parameter (seconds). ok
// reports whether the parameter was present; a present but non-positive
// or unparseable value yields an error.
func ttlParam(r *http.Request) (ttl time.Duration, ok bool, err error) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return 0, false, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0, true, errors.New("ttl must be a positive integer number of seconds")
	}
	return time.Duration(secs) * time.Second, true, nil
}

// writeError maps facade errors onto HTTP statuses: absent key → 404,
// malformed input → 400, transport fault → 502. A 404 body and a 502
// body are deliberately distinct so callers can tell a miss from an
// unavailable store.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, cache.ErrEmptyKey), errors.Is(err, cache.ErrInvalidTTL), errors.Is(err, cache.ErrBadPattern):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "cache_unavailable", "message": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// notApplied reports a boolean operation that found no key to act on.
func notApplied(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
}

// GetValue handles GET /cache/{key}
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := h.Cache.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(value)
}

// PutValue handles POST /cache/{key}[?ttl=seconds]
func (h *Handler) PutValue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "unreadable body"})
		return
	}

	ttl, hasTTL, err := ttlParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": err.Error()})
		return
	}

	if hasTTL {
		err = h.Cache.PutWithTTL(r.Context(), key, value, ttl)
	} else {
		err = h.Cache.Put(r.Context(), key, value)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// UpdateValue handles PUT /cache/{key}[?ttl=seconds]. Without a ttl
// parameter the existing expiry is preserved; with one it is replaced.
func (h *Handler) UpdateValue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "unreadable body"})
		return
	}

	ttl, hasTTL, err := ttlParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": err.Error()})
		return
	}

	var applied bool
	if hasTTL {
		applied, err = h.Cache.UpdateWithTTL(r.Context(), key, value, ttl)
	} else {
		applied, err = h.Cache.Update(r.Context(), key, value)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if !applied {
		notApplied(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteValue handles DELETE /cache/{key}
func (h *Handler) DeleteValue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	deleted, err := h.Cache.Delete(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		notApplied(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UpdateTTL handles PUT /cache/{key}/ttl?ttl=seconds
func (h *Handler) UpdateTTL(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	ttl, hasTTL, err := ttlParam(r)
	if err != nil || !hasTTL {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "ttl query parameter is required and must be positive"})
		return
	}

	applied, err := h.Cache.UpdateTTL(r.Context(), key, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	if !applied {
		notApplied(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ttl updated"})
}

// GetTTL handles GET /cache/{key}/ttl. The three expiry states map to
// three distinct bodies.
func (h *Handler) GetTTL(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ttl, err := h.Cache.GetTTL(r.Context(), key)
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if !ttl.HasExpiry {
		writeJSON(w, http.StatusOK, map[string]any{"exists": true, "persistent": true})
		return
	}
	// Round up: a live key with sub-second remaining TTL reports 1,
	// never a 0 that reads as already gone.
	writeJSON(w, http.StatusOK, map[string]any{
		"exists": true,
		"ttl":    int64((ttl.Remaining + time.Second - 1) / time.Second),
	})
}

// CheckExists handles GET /cache/{key}/exists
func (h *Handler) CheckExists(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	exists, err := h.Cache.Exists(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// ListKeys handles GET /cache/keys[?pattern=glob]
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	keys, err := h.Cache.Keys(r.Context(), pattern)
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Cache.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
