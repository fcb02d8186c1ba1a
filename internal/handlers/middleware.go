package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"currency-gateway/internal/metrics"
	"currency-gateway/internal/ratelimit"
	"currency-gateway/internal/render"

	"github.com/go-chi/chi/v5"
)

// ClientIP prefers the first X-Forwarded-For entry, the gateway usually
// sits behind a proxy. Falls back to the direct remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isCurl(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("User-Agent")), "curl")
}

// RateLimit rejects over-quota clients before any resolver logic runs.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if ip == "" {
				ip = "unknown"
			}

			result := limiter.Check(r.Context(), ip)
			if !result.Allowed {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				if isCurl(r) {
					w.Header().Set("Content-Type", "text/plain")
					w.WriteHeader(http.StatusTooManyRequests)
					w.Write([]byte(render.Error(result.Message)))
					return
				}
				writeJSONError(w, http.StatusTooManyRequests, result.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth guards the admin routes with a shared token header.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("X-Admin-Token") != token {
				writeJSONError(w, http.StatusUnauthorized, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMetrics counts requests per matched route and status code.
func RequestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.status)).Inc()
		})
	}
}
