package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrFetchFailure covers every way a market data fetch can fail:
// network errors, non-2xx statuses and malformed bodies alike.
var ErrFetchFailure = errors.New("market data fetch failed")

// MarketRecord is one element of the /coins/markets response
type MarketRecord struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	High24h                  decimal.NullDecimal `json:"high_24h"`
	Low24h                   decimal.NullDecimal `json:"low_24h"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
	CirculatingSupply        decimal.NullDecimal `json:"circulating_supply"`
	TotalSupply              decimal.NullDecimal `json:"total_supply"`
	MaxSupply                decimal.NullDecimal `json:"max_supply"`
	ATH                      decimal.NullDecimal `json:"ath"`
	LastUpdated              string              `json:"last_updated"`
}

// ToCoinSummary renames the upstream fields; values are taken as-is
func (r MarketRecord) ToCoinSummary() models.CoinSummary {
	return models.CoinSummary{
		ID:                r.ID,
		Name:              r.Name,
		Symbol:            r.Symbol,
		Image:             r.Image,
		CurrentPrice:      r.CurrentPrice,
		PriceChange24h:    r.PriceChangePercentage24h,
		MarketCap:         r.MarketCap,
		TotalVolume:       r.TotalVolume,
		Low24h:            r.Low24h,
		High24h:           r.High24h,
		TotalSupply:       r.TotalSupply,
		MaxSupply:         r.MaxSupply,
		CirculatingSupply: r.CirculatingSupply,
		ATH:               r.ATH,
		LastUpdated:       r.LastUpdated,
	}
}

// Client fetches market data from the CoinGecko REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *logrus.Logger
}

// NewClient creates a new CoinGecko client
func NewClient(baseURL string, timeout time.Duration, limiter *RateLimiter, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// FetchMarkets fetches the market list priced in the given currency
func (c *Client) FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, fmt.Errorf("%w: client-side rate limit exceeded", ErrFetchFailure)
	}

	endpoint := c.baseURL + "/coins/markets?" + url.Values{"vs_currency": {currency.Query()}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetchFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.WithField("currency", currency).Debug("Fetching market data from CoinGecko")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
		c.limiter.RecordRateLimitHit()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: markets API returned status %d", ErrFetchFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailure, err)
	}

	var records []MarketRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to parse markets response: %v", ErrFetchFailure, err)
	}

	if c.limiter != nil {
		c.limiter.RecordSuccess()
	}

	coins := make([]models.CoinSummary, 0, len(records))
	for _, r := range records {
		coins = append(coins, r.ToCoinSummary())
	}

	c.logger.WithFields(logrus.Fields{
		"currency": currency,
		"count":    len(coins),
	}).Debug("Fetched market data from CoinGecko")

	return coins, nil
}
