// Package main is the entrypoint for the Verimail API server.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/verimail/verimail/internal/cache"
	"github.com/verimail/verimail/internal/config"
	"github.com/verimail/verimail/internal/handler"
	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/middleware"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
	"github.com/verimail/verimail/internal/ratelimit"
	"github.com/verimail/verimail/internal/repository"
	"github.com/verimail/verimail/internal/server"
	"github.com/verimail/verimail/internal/service"
	"github.com/verimail/verimail/internal/usage"
	"github.com/verimail/verimail/internal/validator"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache. Redis is optional: without it, rate limiting
	// and auth caching run in process.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, using in-process rate limiting and no auth cache")
	}

	// Initialize metrics
	metricsRecorder := metrics.NewInMemory()

	// Initialize rate limiter
	var limiter ratelimit.Limiter
	if cacheClient != nil {
		limiter = ratelimit.NewRedisLimiter(cacheClient.Client(), logger, nil)
	} else {
		limiter = ratelimit.NewMemoryLimiter(nil)
	}

	// Initialize usage recording pipeline
	usageRecorder := usage.NewRecorder(repo, logger, metricsRecorder, cfg.UsageBufferSize)
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go func() {
		if err := usageRecorder.Run(workerCtx); err != nil {
			logger.Error("usage recorder stopped", "error", err)
		}
	}()

	// Initialize validation pipeline
	emailValidator := validator.New(&net.Resolver{}, cfg.DNSTimeout)
	ledger := quota.NewLedger(repo, nil)
	validationService := service.NewValidationService(
		ledger,
		emailValidator,
		repo,
		cacheClient,
		metricsRecorder,
		logger,
		nil,
	)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(repo, pingerOrNil(cacheClient))
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	validationHandler := handler.NewValidationHandler(validationService, usageRecorder, logger, nil)

	// Setup router
	r := setupRouter(healthHandler, metricsHandler, validationHandler, repo, cacheClient, limiter, metricsRecorder, cfg, logger)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Drain buffered usage records before the process exits.
	srv.OnShutdown("usage recorder", usageRecorder.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// pingerOrNil avoids a typed-nil HealthChecker when Redis is not configured.
func pingerOrNil(c *cache.Cache) handler.HealthChecker {
	if c == nil {
		return nil
	}
	return c
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	validationHandler *handler.ValidationHandler,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	limiter ratelimit.Limiter,
	metricsRecorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Unauthenticated endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)
	r.Get("/api/keepalive", healthHandler.Keepalive)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
		Cache:      cacheClient,
		Metrics:    metricsRecorder,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: limiter,
		Metrics: metricsRecorder,
	}

	windowFor := func(requests int) func(http.Handler) http.Handler {
		return middleware.RateLimit(rateLimitCfg, model.WindowLimit{
			Requests: requests,
			Window:   cfg.RateLimitWindow,
		})
	}

	// API routes (require authentication)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))

		if cfg.RateLimitEnabled {
			r.With(windowFor(cfg.RateLimitValidate)).Post("/validate", validationHandler.ValidateOne)
			r.With(windowFor(cfg.RateLimitBulk)).Post("/validate/bulk", validationHandler.ValidateBulk)
			r.With(windowFor(cfg.RateLimitReputation)).Get("/domain/reputation", validationHandler.Reputation)
			r.With(windowFor(cfg.RateLimitStats)).Get("/stats", validationHandler.Stats)
		} else {
			r.Post("/validate", validationHandler.ValidateOne)
			r.Post("/validate/bulk", validationHandler.ValidateBulk)
			r.Get("/domain/reputation", validationHandler.Reputation)
			r.Get("/stats", validationHandler.Stats)
		}
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
