package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinboard/internal/cache"
	"coinboard/internal/coingecko"
	"coinboard/internal/config"
	grpcServer "coinboard/internal/grpc"
	"coinboard/internal/market"
	"coinboard/internal/page"
	"coinboard/internal/pubsub"
	"coinboard/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var version = "1.0.0"

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.Info("Starting Coinboard...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: ", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	currencies := market.LoadCurrenciesWithFallback(cfg.UI.CurrenciesFile)
	logger.Infof("Currency selector: %v", currencies)

	defaultCurrency, err := market.ResolveDefaultCurrency(cfg.UI.DefaultCurrency, currencies)
	if err != nil {
		logger.Fatal("Invalid DEFAULT_CURRENCY: ", err)
	}

	// Optional Redis cache and publisher
	var (
		marketsCache market.Cache
		publisher    market.Publisher
	)
	if cfg.Redis.Enabled {
		logger.Info("Connecting to Redis...")
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis: ", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected successfully")

		if cfg.Cache.MarketsEnabled {
			marketsCache = cache.NewMarketsCache(redisClient, logger)
		}
		publisher = pubsub.NewPublisher(redisClient, cfg.Redis.PubSubPrefix, logger)
	}

	// gRPC health server
	var (
		grpcSrv *grpcServer.Server
		health  market.HealthReporter
	)
	if cfg.Server.EnableGRPC {
		grpcSrv = grpcServer.NewServer(cfg, logger)
		health = grpcSrv
	}

	// Upstream client and market service
	limiter := coingecko.NewRateLimiter(cfg.CoinGecko.RequestsPerSecond, cfg.CoinGecko.Burst)
	client := coingecko.NewClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.Timeout, limiter, logger)
	marketSvc := market.NewService(client, marketsCache, publisher, health, cfg, logger)

	// Page sessions
	sessions := web.NewSessionStore(func() *page.Controller {
		return page.NewController(marketSvc, defaultCurrency, logger)
	}, cfg.UI.SessionIdleTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.StartJanitor(ctx, time.Minute)

	handler := web.NewHandler(sessions, currencies, limiter, version, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: handler.SetupRoutes(cfg.UI.SessionIdleTimeout),
	}

	errChan := make(chan error, 2)

	go func() {
		logger.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcSrv != nil {
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errChan <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	logger.Infof("Coinboard v%s started successfully", version)

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		logger.WithError(err).Error("Server error")
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown")
	}

	if grpcSrv != nil {
		grpcSrv.Stop()
	}

	cancel()
	sessions.Close()

	logger.Info("Shutdown complete")
}
