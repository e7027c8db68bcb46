package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"coinboard/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// MarketsUpdate is the payload published after every successful upstream fetch
type MarketsUpdate struct {
	Currency  models.Currency      `json:"currency"`
	Coins     []models.CoinSummary `json:"coins"`
	FetchedAt time.Time            `json:"fetched_at"`
}

type Publisher struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewPublisher(client *redis.Client, prefix string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Channel returns the channel a currency's snapshots are published on
func (p *Publisher) Channel(currency models.Currency) string {
	return p.prefix + ":" + currency.Query()
}

// PublishMarkets publishes a fresh market snapshot to the currency's channel
func (p *Publisher) PublishMarkets(ctx context.Context, currency models.Currency, coins []models.CoinSummary) error {
	data, err := json.Marshal(MarketsUpdate{
		Currency:  currency,
		Coins:     coins,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, p.Channel(currency), data).Err()
}
