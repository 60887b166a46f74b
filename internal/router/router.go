package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/auth"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/recommend"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

const requestIDHeader = "X-Request-ID"

// Handlers are the domain handlers mounted by RegisterRoutes.
type Handlers struct {
	Behavior   *behavior.Handler
	Recommend  *recommend.Handler
	Preference *preference.Handler
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(requestIDHeader, id)
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs requests at debug level and counts them by status.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", r.Header.Get(requestIDHeader),
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers for a JSON API.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the API on an http.ServeMux. Everything under /v1
// except health requires an identity from res.
func RegisterRoutes(h Handlers, res auth.Resolver, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()
	authed := auth.Middleware(res, logger)
	protect := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteJSON(w, http.StatusOK, map[string]string{
			"service": "recommend",
			"status":  "running",
			"health":  "/v1/health",
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	protect("POST /v1/behavior/log", h.Behavior.Log)

	protect("POST /v1/recommend/feed", h.Recommend.Feed)
	protect("POST /v1/recommend/natural", h.Recommend.Natural)
	protect("POST /v1/recommend/highlights", h.Recommend.Highlights)
	protect("POST /v1/recommend/feedback/reward", h.Behavior.Reward)

	protect("POST /v1/user/onboarding", h.Preference.Onboarding)
	protect("GET /v1/user/profile", h.Preference.Profile)
	protect("POST /v1/user/reset", h.Preference.Reset)

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
