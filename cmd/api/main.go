package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"mindwell/internal/config"
	"mindwell/internal/db"
	apihttp "mindwell/internal/http"
	"mindwell/internal/identity"
	"mindwell/internal/repository"
	"mindwell/internal/service"
	"mindwell/internal/state"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	profileRepo := repository.NewPgProfileRepository(pool)

	var provider identity.Provider
	if cfg.IdentityBaseURL != "" {
		provider = identity.NewHTTPProvider(cfg.IdentityBaseURL, cfg.IdentityAPIKey, logger)
	} else {
		if cfg.SessionSecret == "" {
			logger.Warn("session secret not configured")
		}
		credRepo := repository.NewPgCredentialRepository(pool)
		provider = identity.NewLocalProvider(
			logger,
			credRepo,
			cfg.SessionSecret,
			time.Duration(cfg.SessionTTLMinutes)*time.Minute,
		)
	}

	var snapshots state.SnapshotStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			snapshots = state.NewRedisSnapshotStore(redisClient)
		}
		cancel()
	}
	if snapshots == nil {
		snapshots = state.NewMemorySnapshotStore()
	}

	authState := state.NewContainer(logger, snapshots)
	policy := service.RetryPolicy{
		MaxAttempts: cfg.ReconcileAttempts,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*cfg.ReconcileBackoffMS) * time.Millisecond
		},
	}
	reconciler := service.NewProfileReconciler(logger, profileRepo, policy)
	sessions := service.NewSessionManager(logger, provider, reconciler, authState)

	sessions.RestoreSession(ctx)
	defer sessions.Teardown()

	authHandler := apihttp.NewAuthHandler(logger, sessions, authState)
	router := apihttp.NewRouter(logger, provider, authHandler, func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
