package main

import (
	"context"
	"flag"
	"strings"

	"coinboard/internal/cache"
	"coinboard/internal/coingecko"
	"coinboard/internal/config"
	"coinboard/internal/importer"
	"coinboard/internal/market"
	"coinboard/internal/models"
	"coinboard/internal/pubsub"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	currencies := flag.String("currencies", "all", "Comma-separated currency codes or 'all' for the configured selector list")
	workers := flag.Int("workers", 1, "Number of parallel workers")
	refresh := flag.Bool("refresh", false, "Drop cached lists before fetching")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if !cfg.Cache.MarketsEnabled {
		logger.Fatal("MARKETS_CACHE_ENABLED must be true to import market data")
	}

	currencyList, err := parseCurrencies(*currencies, cfg.UI.CurrenciesFile)
	if err != nil {
		logger.Fatalf("Invalid -currencies: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	limiter := coingecko.NewRateLimiter(cfg.CoinGecko.RequestsPerSecond, cfg.CoinGecko.Burst)
	client := coingecko.NewClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.Timeout, limiter, logger)
	marketsCache := cache.NewMarketsCache(redisClient, logger)
	svc := market.NewService(
		client,
		marketsCache,
		pubsub.NewPublisher(redisClient, cfg.Redis.PubSubPrefix, logger),
		nil,
		cfg,
		logger,
	)

	job := &importer.ImportJob{
		Currencies: currencyList,
		Workers:    *workers,
		Refresh:    *refresh,
	}
	logger.Infof("Starting import: %s", job.String())

	if _, err := importer.New(svc, marketsCache, logger).Import(ctx, job); err != nil {
		logger.Fatalf("Import failed: %v", err)
	}

	logger.Info("Import completed successfully")
}

func parseCurrencies(input, currenciesFile string) ([]models.Currency, error) {
	if input == "all" {
		return market.LoadCurrenciesWithFallback(currenciesFile), nil
	}

	var currencies []models.Currency
	for _, code := range strings.Split(input, ",") {
		currency, err := models.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, currency)
	}
	return currencies, nil
}
