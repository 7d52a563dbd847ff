package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liverpool/kvcache/internal/cache"
	"github.com/liverpool/kvcache/internal/config"
	"github.com/liverpool/kvcache/internal/logging"
	"github.com/liverpool/kvcache/internal/metrics"
	"github.com/liverpool/kvcache/internal/observability"
	"github.com/liverpool/kvcache/internal/ratelimit"
)

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Cache            cache.Cache
	RateLimitBackend ratelimit.Backend // nil disables rate limiting
	RateLimit        config.RateLimitConfig
}

// publicPaths are exempt from rate limiting.
var publicPaths = []string{"/health", "/metrics"}

// NewHTTPServer builds the HTTP server with the full middleware chain:
// tracing, request IDs + access log + metrics, and optional rate
// limiting outermost.
func NewHTTPServer(addr string, readTimeout, writeTimeout time.Duration, cfg ServerConfig) *http.Server {
	mux := http.NewServeMux()

	h := &Handler{Cache: cfg.Cache}
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = mux
	handler = observability.HTTPMiddleware(handler)
	handler = requestMiddleware(handler)

	if cfg.RateLimitBackend != nil && cfg.RateLimit.Enabled {
		limits := ratelimit.Limits{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
		}
		handler = ratelimit.Middleware(cfg.RateLimitBackend, limits, publicPaths)(handler)
		logging.Op().Info("rate limiting enabled",
			"rps", cfg.RateLimit.RequestsPerSecond, "burst", cfg.RateLimit.BurstSize)
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// Start runs the server in a goroutine.
func Start(server *http.Server) {
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()
}

// requestMiddleware assigns each request an ID, records the access log
// entry, and feeds the request metrics.
func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), rw.status, elapsed)

		logging.Access().Log(&logging.AccessEntry{
			RequestID:  requestID,
			TraceID:    observability.GetTraceID(r.Context()),
			SpanID:     observability.GetSpanID(r.Context()),
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rw.status,
			DurationMs: elapsed.Milliseconds(),
			BytesOut:   rw.bytes,
			RemoteIP:   r.RemoteAddr,
		})
	})
}

// routeLabel collapses per-key paths into fixed route templates so the
// metrics label set stays bounded.
func routeLabel(path string) string {
	if path == "/cache/keys" || !strings.HasPrefix(path, "/cache/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/cache/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return "/cache/{key}" + rest[i:]
	}
	return "/cache/{key}"
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Shutdown gracefully stops the server.
func Shutdown(ctx context.Context, server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
