package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nimbusdrive/nimbusdrive/internal/announcements"
	"github.com/nimbusdrive/nimbusdrive/internal/app"
	"github.com/nimbusdrive/nimbusdrive/internal/auth"
	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/observability"
	"github.com/nimbusdrive/nimbusdrive/internal/platform/cache"
	"github.com/nimbusdrive/nimbusdrive/internal/platform/db"
	"github.com/nimbusdrive/nimbusdrive/internal/ratelimit"
	"github.com/nimbusdrive/nimbusdrive/internal/roles"
	"github.com/nimbusdrive/nimbusdrive/internal/settings"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
	"github.com/nimbusdrive/nimbusdrive/internal/users"
	"github.com/nimbusdrive/nimbusdrive/internal/verification"
	"github.com/nimbusdrive/nimbusdrive/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "nimbus_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	metrics := observability.NewMetrics()

	identityStore := users.NewIdentityStore(dbpool)
	identityCache := authz.NewCache(redisClient, identityStore, cfg.IdentityCacheTTL, logger)
	guard := authz.Guard{Cache: identityCache, Logger: logger, Observer: metrics}

	limiter := ratelimit.New()
	rateLimit := ratelimit.Middleware{Limiter: limiter, Logger: logger, Observer: metrics}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient)

	verifyService := verification.NewService(redisClient, enqueuer, cfg.VerifyCodeTTL, logger)
	settingsService := settings.NewService(redisClient)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	avatarStore := users.NewMemoryAvatarStore()
	usersService := users.NewService(usersRepo, identityCache, verifyService, avatarStore)
	usersHandler := users.NewHandler(logger, usersService, verifyService, settingsService)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, identityCache)
	rolesHandler := roles.NewHandler(logger, rolesService)

	announcementRepo := announcements.NewRepository(dbpool)
	announcementService := announcements.NewService(announcementRepo)
	announcementHandler := announcements.NewHandler(logger, announcementService)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		Guard:               guard,
		RateLimit:           rateLimit,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		RolesHandler:        rolesHandler,
		AnnouncementHandler: announcementHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
