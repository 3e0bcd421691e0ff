package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/adapters/events"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/registry"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/store"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/tokenizer"
	"github.com/CoachCoe/polkadot-sso-sub005/config"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
	"github.com/CoachCoe/polkadot-sso-sub005/service"
	transport "github.com/CoachCoe/polkadot-sso-sub005/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		challengeStore ports.ChallengeStore
		sessionStore   ports.SessionStore
		denylistStore  ports.DenylistStore
		rateStore      ports.RateLimitStore
		auditStore     ports.AuditStore
		publisher      ports.EventPublisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to reach redis", zap.Error(err))
		}

		challengeStore = store.NewRedisChallengeStore(client)
		sessionStore = store.NewRedisSessionStore(client)
		denylistStore = store.NewRedisDenylistStore(client)
		rateStore = store.NewRedisRateLimitStore(client)
		auditStore = store.NewRedisAuditStore(client)

		wmPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		publisher = events.NewWatermillPublisher(wmPublisher)
		logger.Info("using redis persistence", zap.String("url", cfg.RedisURL))
	} else {
		challengeStore = store.NewMemoryChallengeStore()
		sessionStore = store.NewMemorySessionStore()
		denylistStore = store.NewMemoryDenylistStore()
		rateStore = store.NewMemoryRateLimitStore()
		auditStore = store.NewMemoryAuditStore()
		publisher = events.NopPublisher{}
		logger.Info("using in-memory persistence")
	}

	jwtTokenizer, err := tokenizer.NewJWTTokenizer(cfg.Issuer, cfg.AccessSecret, cfg.RefreshSecret)
	if err != nil {
		logger.Fatal("token secrets rejected", zap.Error(err))
	}

	clientRegistry := registry.NewMemoryRegistry(cfg.Clients)

	auditService := service.NewAuditService(auditStore, logger, 0)
	defer auditService.Close()

	tokenService := service.NewTokenService(jwtTokenizer, denylistStore, cfg.AccessTTL, cfg.RefreshTTL)
	challengeService := service.NewChallengeService(challengeStore, clientRegistry, auditService, service.ChallengeConfig{
		Domain:    cfg.Domain,
		AppURI:    cfg.AppURI,
		Statement: cfg.Statement,
		ChainID:   cfg.ChainID,
		TTL:       cfg.ChallengeTTL,
	}, logger)
	sessionService := service.NewSessionService(sessionStore, tokenService, auditService, publisher, logger)

	limiter := service.NewRateLimiter(rateStore, nil, logger)
	guard := service.NewBruteForceGuard(rateStore, auditService, 0, 0, logger)

	authService := service.NewAuthService(
		challengeService,
		sessionService,
		tokenService,
		clientRegistry,
		auditService,
		limiter,
		publisher,
		nil,
		logger,
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := service.NewSweeper(challengeService, sessionService, auditService, cfg.AuditRetention, cfg.SweepInterval, logger)
	go sweeper.Run(sweepCtx)

	router := transport.SetupRouter(transport.RouterDeps{
		Auth:    authService,
		Limiter: limiter,
		Guard:   guard,
		Audit:   auditService,
		Log:     logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown did not complete cleanly", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
