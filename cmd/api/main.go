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

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/background"
	"github.com/BradenHooton/tally/internal/config"
	"github.com/BradenHooton/tally/internal/database"
	"github.com/BradenHooton/tally/internal/handlers"
	"github.com/BradenHooton/tally/internal/limiter"
	middlewareCustom "github.com/BradenHooton/tally/internal/middleware"
	"github.com/BradenHooton/tally/internal/notify"
	"github.com/BradenHooton/tally/internal/repositories"
	"github.com/BradenHooton/tally/internal/routes"
	"github.com/BradenHooton/tally/internal/services"
	"github.com/BradenHooton/tally/internal/telemetry"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
	pkglogger "github.com/BradenHooton/tally/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTRefreshSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	gateway := auth.NewGateway(tokenManager, sessionRepo, accountRepo, logger)
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)

	// Notifications
	var sender notify.Sender
	switch cfg.Email.Provider {
	case "ses":
		sender, err = notify.NewSESSender(ctx, cfg.Email.AWSRegion, cfg.Email.From, cfg.Email.AppBaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		sender = notify.NewLogSender(cfg.Email.AppBaseURL, logger, cfg.Server.Env != "production")
	}

	dispatcher := notify.NewDispatcher(sender, notify.DispatcherConfig{
		QueueSize:  cfg.Email.QueueSize,
		Workers:    cfg.Email.Workers,
		Timeout:    cfg.Email.Timeout,
		MaxRetries: cfg.Email.MaxRetries,
	}, logger)
	dispatcher.Start()

	// Redis backs the per-email throttle and the job lock when configured
	var (
		throttle services.EmailThrottle
		locker   background.Locker
	)
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		throttle = limiter.NewEmailThrottle(redisClient, cfg.Redis.ThrottleLimit, cfg.Redis.ThrottleWindow)
		locker = limiter.NewJobLock(redisClient)
	} else {
		logger.Warn("REDIS_ADDR not set, email throttling and job locks disabled")
	}

	// Initialize services
	monitor := services.NewSecurityMonitor(auditRepo, dispatcher, cfg.Email.AdminEmail, logger)
	auditService := services.NewAuditService(auditRepo, pkglogger.NewAuditLogger(logger), logger).
		WithMonitor(monitor)

	authService := services.NewAuthService(accountRepo, sessionRepo, tokenManager, hasher, dispatcher, auditService,
		services.AuthPolicy{
			VerificationTokenTTL:  cfg.Auth.VerificationTokenTTL,
			PasswordResetTokenTTL: cfg.Auth.PasswordResetTokenTTL,
			MaxLoginAttempts:      cfg.Auth.MaxLoginAttempts,
			LockoutDuration:       cfg.Auth.LockoutDuration,
			InactivityWindow:      cfg.Lifecycle.InactivityWindow,
		}, logger).
		WithTimingDelay(auth.NewTimingDelay(auth.TimingConfig{
			BaseDelayMs:   cfg.Auth.TimingBaseDelayMs,
			RandomDelayMs: cfg.Auth.TimingRandomDelayMs,
		}))
	if throttle != nil {
		authService.WithThrottle(throttle)
	}

	sessionService := services.NewSessionService(sessionRepo, auditService, logger)
	reconciliation := services.NewReconciliationService(accountRepo, sessionRepo, dispatcher, auditService,
		services.LifecyclePolicy{
			WarningAfter:     cfg.Lifecycle.InactivityWarningAfter,
			InactivityWindow: cfg.Lifecycle.InactivityWindow,
			DeletionGrace:    cfg.Lifecycle.DeletionGrace,
		}, logger)

	// Background jobs
	scheduler := background.NewScheduler([]background.Job{
		{Name: "inactivity-warning", Interval: cfg.Lifecycle.WarningInterval, Run: reconciliation.WarnInactive},
		{Name: "inactivity-sweep", Interval: cfg.Lifecycle.SweepInterval, Run: reconciliation.SweepInactive},
		{Name: "deletion-sweep", Interval: cfg.Lifecycle.DeletionInterval, Run: reconciliation.SweepDeletions},
		{Name: "session-cleanup", Interval: cfg.Lifecycle.SessionCleanupInterval, Run: reconciliation.CleanupSessions},
	}, locker, cfg.Lifecycle.JobTimeout, logger)
	scheduler.Start(ctx)

	// Initialize handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, ipConfig, logger)
	sessionHandler := handlers.NewSessionHandler(sessionService, logger)

	// Setup router
	router := routes.NewRouter(logger, cfg.Server.RequestTimeout)

	router.Get("/health", handlers.Health(db))
	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, authHandler, sessionHandler, gateway, middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.AuthRateLimitPerMinute,
			IPConfig:          ipConfig,
		})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	scheduler.Stop()

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification drain incomplete", slog.Any("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
}
