package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nimbusdrive/nimbusdrive/internal/platform/httpx"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// Observer receives authorization outcomes for metrics.
type Observer interface {
	ObserveAuthzDenied(kind string)
}

// Guard wires authorization middleware for HTTP handlers. Each protected
// route is wrapped before its handler body runs, so a denial short-circuits
// the operation without any of its side effects.
type Guard struct {
	Cache    *Cache
	Logger   *slog.Logger
	Observer Observer
}

// RequireAuthenticated admits any authenticated, non-disabled identity.
func (g Guard) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.require("")
}

// RequirePermission admits identities holding the given permission.
func (g Guard) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return g.require(p)
}

func (g Guard) require(required Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := g.currentUserID(r)
			if userID == "" {
				g.deny(w, "unauthenticated")
				httpx.RespondError(w, httpx.ErrUnauthenticated)
				return
			}

			identity, err := g.Cache.Resolve(r.Context(), userID)
			if err != nil {
				if errors.Is(err, ErrIdentityNotFound) {
					// The account vanished after the session was issued. The
					// stale session is destroyed so later requests with the
					// same cookie stop hitting the durable store.
					if sess := shared.SessionFromContext(r.Context()); sess != nil {
						sess.Destroy()
					}
					g.deny(w, "unauthenticated")
					httpx.RespondError(w, httpx.ErrUnauthenticated)
					return
				}
				if g.Logger != nil {
					g.Logger.Error("authz resolve identity", slog.String("user_id", userID), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}

			if err := Authorize(identity, required); err != nil {
				// Disabled and missing-permission denials are both 403; the
				// body never names the missing permission.
				g.deny(w, "forbidden")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

func (g Guard) currentUserID(r *http.Request) string {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return sess.User()
}

func (g Guard) deny(_ http.ResponseWriter, kind string) {
	if g.Observer != nil {
		g.Observer.ObserveAuthzDenied(kind)
	}
}
