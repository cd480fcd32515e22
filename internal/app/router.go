package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nimbusdrive/nimbusdrive/internal/announcements"
	"github.com/nimbusdrive/nimbusdrive/internal/auth"
	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/credentials"
	"github.com/nimbusdrive/nimbusdrive/internal/observability"
	"github.com/nimbusdrive/nimbusdrive/internal/ratelimit"
	"github.com/nimbusdrive/nimbusdrive/internal/roles"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
	"github.com/nimbusdrive/nimbusdrive/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Guard          authz.Guard
	RateLimit      ratelimit.Middleware

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	RolesHandler        *roles.Handler
	AnnouncementHandler *announcements.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router. Guards compose per route: the session
// middleware runs first, then rate limiting, then the permission guard, so a
// throttled caller is refused before any permission lookup happens.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		// Login credentials are digested before the handler ever sees them.
		r.Use(credentials.Normalizer("/auth/login"))
		params.AuthHandler.MountRoutes(r)
	})

	// One global bucket for code issuance: the nil key func throttles the
	// operation as a whole, not per caller.
	verifyCodeLimit := params.RateLimit.Limit("getVerifyCode", 1.0, time.Second, nil)
	r.Route("/user", func(r chi.Router) {
		params.UsersHandler.MountRoutes(r, params.Guard, verifyCodeLimit)
	})
	r.Route("/role", func(r chi.Router) {
		params.RolesHandler.MountRoutes(r, params.Guard)
	})
	r.Route("/announcement", func(r chi.Router) {
		params.AnnouncementHandler.MountRoutes(r, params.Guard)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
