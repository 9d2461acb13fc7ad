package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/matchgate/enrichd/internal/config"
	"github.com/matchgate/enrichd/internal/db"
	dbRedis "github.com/matchgate/enrichd/internal/db/redis"
	dbSqlite "github.com/matchgate/enrichd/internal/db/sqlite"
	"github.com/matchgate/enrichd/internal/domain/policy"
	logpkg "github.com/matchgate/enrichd/internal/logger"
	"github.com/matchgate/enrichd/internal/metrics"
	"github.com/matchgate/enrichd/internal/repository/reference"
	"github.com/matchgate/enrichd/internal/transport/httpapi"
	"github.com/matchgate/enrichd/internal/transport/natsapi"
	"github.com/matchgate/enrichd/internal/usecase/coordinator"
	enrichuc "github.com/matchgate/enrichd/internal/usecase/enrich"
	healthuc "github.com/matchgate/enrichd/internal/usecase/health"
	policiesuc "github.com/matchgate/enrichd/internal/usecase/policies"
	"github.com/matchgate/enrichd/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting enrichd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create reference store based on driver
	ctx := context.Background()
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "sqlite":
		store, err = dbSqlite.NewStore(ctx, dbSqlite.Config{
			Path: cfg.Database.Path,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create reference store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Reference store not ready", zap.Error(err))
	}
	logger.Info("Connected to reference store")

	// Register lookup metrics explicitly (no init())
	metrics.RegisterLookupMetrics()

	// Build configured policies
	pols := make([]policy.Policy, 0, len(cfg.Policies))
	for _, pc := range cfg.Policies {
		p, err := policy.New(pc.Name, policy.Type(pc.Type), pc.MatchField)
		if err != nil {
			logger.Fatal("Invalid policy", zap.String("policy", pc.Name), zap.Error(err))
		}
		pols = append(pols, p)
	}

	refRepo := reference.New(store)
	policySvc := policiesuc.NewService(refRepo, pols)

	// Indexes exist before the first lookup can be submitted.
	if err := policySvc.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to prepare reference indexes", zap.Error(err))
	}
	logger.Info("Reference indexes ready", zap.Int("policies", len(pols)))

	coord := coordinator.New(refRepo, coordinator.Config{
		QueueCapacity: cfg.Coordinator.QueueCapacity,
		Workers:       cfg.Coordinator.Workers,
		BatchSize:     cfg.Coordinator.BatchSize,
		CacheSize:     cfg.Cache.Size,
		CacheTTL:      time.Duration(cfg.Cache.TTLSec) * time.Second,
		RateLimit:     cfg.Coordinator.RateLimit,
		RateBurst:     cfg.Coordinator.RateBurst,
	}, logger)

	enrichSvc, err := enrichuc.NewService(coord.Bind(), pols, cfg.Enrichers)
	if err != nil {
		logger.Fatal("Failed to build enricher registry", zap.Error(err))
	}
	logger.Info("Enrichers registered", zap.Int("enrichers", len(cfg.Enrichers)))

	healthSvc := healthuc.New(store, coord)

	// Create chi server
	server := httpapi.NewServer(enrichSvc, policySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	// Optional NATS consumer
	var nc *nats.Conn
	var sub *nats.Subscription
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("enrichd"))
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		consumer := natsapi.New(enrichSvc, nc, logger)
		sub, err = consumer.Subscribe(nc, cfg.NATS.QueueGroup)
		if err != nil {
			logger.Fatal("Failed to start NATS consumer", zap.Error(err))
		}
		logger.Info("NATS consumer started",
			zap.String("url", cfg.NATS.URL),
			zap.String("queue_group", cfg.NATS.QueueGroup),
		)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Intake is closed before the coordinator drains, and the queue drains
	// before the connections close: every accepted lookup still completes
	// and publishes its outcome.
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			logger.Error("Error stopping NATS consumer", zap.Error(err))
		}
	}
	coord.Stop()
	if nc != nil {
		nc.Close()
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
