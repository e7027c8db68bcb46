package market

import (
	"context"
	"time"

	"coinboard/internal/config"
	"coinboard/internal/metrics"
	"coinboard/internal/models"

	"github.com/sirupsen/logrus"
)

// Upstream is the remote market data source
type Upstream interface {
	FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error)
}

// Cache stores recent market lists per currency
type Cache interface {
	GetMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error)
	SetMarkets(ctx context.Context, currency models.Currency, coins []models.CoinSummary, ttl time.Duration) error
}

// Publisher fans fresh snapshots out to other consumers
type Publisher interface {
	PublishMarkets(ctx context.Context, currency models.Currency, coins []models.CoinSummary) error
}

// HealthReporter receives the outcome of each upstream attempt
type HealthReporter interface {
	SetMarketDataServing(serving bool)
}

type Service struct {
	upstream  Upstream
	cache     Cache
	publisher Publisher
	health    HealthReporter
	config    *config.Config
	logger    *logrus.Logger
}

// NewService creates a market data service. cache, publisher and health may be nil.
func NewService(
	upstream Upstream,
	cache Cache,
	publisher Publisher,
	health HealthReporter,
	config *config.Config,
	logger *logrus.Logger,
) *Service {
	return &Service{
		upstream:  upstream,
		cache:     cache,
		publisher: publisher,
		health:    health,
		config:    config,
		logger:    logger,
	}
}

// FetchMarkets returns the market list for currency, from cache when enabled
func (s *Service) FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetMarkets(ctx, currency)
		hit := err == nil && cached != nil
		metrics.RecordCacheAccess("redis", hit)
		if hit {
			return cached, nil
		}
	}

	start := time.Now()
	coins, err := s.upstream.FetchMarkets(ctx, currency)
	metrics.TrackLatency(start, metrics.MarketFetchLatency.WithLabelValues(currency.String()))

	if s.health != nil {
		s.health.SetMarketDataServing(err == nil)
	}

	if err != nil {
		metrics.TrackFetchFailure(currency.String())
		return nil, err
	}
	metrics.TrackFetch(currency.String())

	if s.cache != nil {
		if err := s.cache.SetMarkets(ctx, currency, coins, s.config.Cache.MarketsTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache market data")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMarkets(ctx, currency, coins); err != nil {
			metrics.PublishFailures.Inc()
			s.logger.WithError(err).Warn("Failed to publish market update")
		} else {
			metrics.PublishSuccess.Inc()
		}
	}

	return coins, nil
}
