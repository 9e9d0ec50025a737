package ratelimit

import (
	"fmt"
	"log"
	"net"
	"net/http"
)

// Middleware wraps an HTTP handler with per-client rate limiting.
type Middleware struct {
	limiter *Limiter
	enabled bool
	logger  *log.Logger
	onHit   func()
}

// NewMiddleware creates a new rate limiting middleware. onHit, if non-nil, is
// invoked once per rejection (used for metrics).
func NewMiddleware(limiter *Limiter, enabled bool, logger *log.Logger, onHit func()) *Middleware {
	return &Middleware{
		limiter: limiter,
		enabled: enabled,
		logger:  logger,
		onHit:   onHit,
	}
}

// Wrap applies rate limiting to an HTTP handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		if !m.limiter.Allow(r.Context(), key) {
			m.addRateLimitHeaders(w, key)
			if m.onHit != nil {
				m.onHit()
			}
			if m.logger != nil {
				m.logger.Printf("rate limit exceeded: client=%s path=%s", key, r.URL.Path)
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		m.addRateLimitHeaders(w, key)
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller. chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For when present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// addRateLimitHeaders adds standard rate limit headers to the response.
// See: https://datatracker.ietf.org/doc/html/draft-polli-ratelimit-headers
func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, key string) {
	limit := m.limiter.Capacity()
	remaining := m.limiter.Remaining(key)
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", remaining))
}
