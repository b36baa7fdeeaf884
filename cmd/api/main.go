package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	"github.com/BradenHooton/learnlog/internal/background"
	"github.com/BradenHooton/learnlog/internal/config"
	"github.com/BradenHooton/learnlog/internal/database"
	"github.com/BradenHooton/learnlog/internal/handlers"
	middlewareCustom "github.com/BradenHooton/learnlog/internal/middleware"
	"github.com/BradenHooton/learnlog/internal/repositories"
	"github.com/BradenHooton/learnlog/internal/routes"
	"github.com/BradenHooton/learnlog/internal/services"
	pkghttp "github.com/BradenHooton/learnlog/pkg/http"
	pkglogger "github.com/BradenHooton/learnlog/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = newLogger(cfg.Observability.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("allow_registration", cfg.Auth.AllowRegistration),
	)

	if err := middlewareCustom.InitSentry(cfg.Observability.SentryDSN, cfg.Server.Env); err != nil {
		logger.Error("failed to initialize sentry", slog.Any("error", err))
	}
	defer middlewareCustom.FlushSentry()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	identityRepo := repositories.NewIdentityRepository(db.Pool)
	renewalRepo := repositories.NewRenewalTokenRepository(db.Pool)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db.Pool)

	// Initialize token manager
	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    cfg.Auth.TokenSecret,
		Algorithm: cfg.Auth.TokenAlgorithm,
		AccessTTL: cfg.Auth.AccessTokenExpiry,
	})
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	throttle := services.NewThrottleService(loginAttemptRepo, services.ThrottleConfig{
		AllowedAttempts: cfg.Throttle.AllowedAttempts,
		BlockDuration:   cfg.Throttle.BlockDuration,
	}, logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.FailureDelay,
		RandomDelay: cfg.Auth.FailureJitter,
	})

	sessionService, err := services.NewSessionService(
		identityRepo,
		renewalRepo,
		tokenManager,
		throttle,
		timingDelay,
		services.SessionConfig{
			HashCost:          cfg.Auth.SaltRounds,
			RenewalTTL:        cfg.Auth.RefreshTokenExpiry,
			AllowRegistration: cfg.Auth.AllowRegistration,
			QueryTimeout:      cfg.Database.QueryTimeout,
		},
		logger,
		auditLogger,
	)
	if err != nil {
		logger.Error("failed to initialize session service", slog.Any("error", err))
		os.Exit(1)
	}

	// Bootstrap the first identity if configured
	ensureAdminIdentity(sessionService, cfg.Auth, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(sessionService, ipConfig, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middlewareCustom.Recover(logger))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(
		router,
		authHandler,
		tokenManager,
		handlers.Health(db),
		middlewareCustom.DefaultAuthRateLimit(ipConfig),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start retention cleanup
	cleanupManager := background.NewCleanupManager(logger, cfg.Throttle.CleanupInterval,
		background.RetentionTarget{Name: "login_attempts", Store: loginAttemptRepo, Retention: cfg.Throttle.Retention},
		background.RetentionTarget{Name: "renewal_tokens", Store: renewalRepo, Retention: cfg.Auth.RefreshTokenExpiry},
	)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
	}

	cleanupManager.Stop()
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// newLogger builds the JSON logger at the configured level, defaulting to info
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// ensureAdminIdentity creates the configured bootstrap identity if it does
// not exist yet. Failure is logged and startup continues.
func ensureAdminIdentity(svc *services.SessionService, cfg config.AuthConfig, logger *slog.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := svc.EnsureIdentity(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("failed to ensure admin identity", slog.Any("error", err))
		return
	}
	if created {
		logger.Info("admin identity created")
	} else {
		logger.Info("admin identity already exists")
	}
}
