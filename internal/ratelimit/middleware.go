package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nimbusdrive/nimbusdrive/internal/platform/httpx"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// KeyFunc derives a caller-specific bucket suffix from the request. A nil
// KeyFunc yields one global bucket for the operation.
type KeyFunc func(*http.Request) string

// Observer receives rate-limit rejections for metrics.
type Observer interface {
	ObserveRateLimited(operation string)
}

// Middleware wires the token-bucket guard for HTTP handlers.
type Middleware struct {
	Limiter  *Limiter
	Logger   *slog.Logger
	Observer Observer
}

// Limit guards an operation at ratePerSecond permits, waiting up to
// waitTimeout for a token before refusing with 429. The guard never mutates
// business state; it only gates invocation timing.
func (m Middleware) Limit(operation string, ratePerSecond float64, waitTimeout time.Duration, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := operation
			if keyFn != nil {
				if suffix := keyFn(r); suffix != "" {
					key = operation + ":" + suffix
				}
			}
			if err := m.Limiter.Acquire(r.Context(), key, ratePerSecond, waitTimeout); err != nil {
				if m.Observer != nil {
					m.Observer.ObserveRateLimited(operation)
				}
				if m.Logger != nil {
					m.Logger.Warn("rate limit exceeded", slog.String("operation", operation))
				}
				httpx.RespondError(w, httpx.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KeyByIP keys buckets by the caller's remote address.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyBySessionUser keys buckets by the authenticated user, falling back to
// the caller's IP for anonymous sessions.
func KeyBySessionUser(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.User() != "" {
		return sess.User()
	}
	return KeyByIP(r)
}
