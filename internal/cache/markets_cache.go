package cache

import (
	"context"
	"encoding/json"
	"time"

	"coinboard/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type MarketsCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewMarketsCache(client *redis.Client, logger *logrus.Logger) *MarketsCache {
	return &MarketsCache{
		client: client,
		logger: logger,
	}
}

func marketsKey(currency models.Currency) string {
	return "markets:" + currency.Query()
}

// SetMarkets caches a fetched market list
func (c *MarketsCache) SetMarkets(ctx context.Context, currency models.Currency, coins []models.CoinSummary, ttl time.Duration) error {
	data, err := json.Marshal(coins)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, marketsKey(currency), data, ttl).Err()
}

// GetMarkets retrieves a cached market list
func (c *MarketsCache) GetMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error) {
	data, err := c.client.Get(ctx, marketsKey(currency)).Result()
	if err != nil {
		return nil, err
	}

	var coins []models.CoinSummary
	if err := json.Unmarshal([]byte(data), &coins); err != nil {
		return nil, err
	}

	return coins, nil
}

// Delete removes a currency's market list from cache
func (c *MarketsCache) Delete(ctx context.Context, currency models.Currency) error {
	return c.client.Del(ctx, marketsKey(currency)).Err()
}
