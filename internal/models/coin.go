package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// CoinSummary represents one market instrument as shown in the coin table
type CoinSummary struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Symbol            string              `json:"symbol"`
	Image             string              `json:"image"`
	CurrentPrice      decimal.NullDecimal `json:"currentPrice"`
	PriceChange24h    decimal.NullDecimal `json:"priceChange24h"` // percent
	MarketCap         decimal.NullDecimal `json:"marketCap"`
	TotalVolume       decimal.NullDecimal `json:"totalVolume"`
	Low24h            decimal.NullDecimal `json:"low24h"`
	High24h           decimal.NullDecimal `json:"high24h"`
	TotalSupply       decimal.NullDecimal `json:"totalSupply"`
	MaxSupply         decimal.NullDecimal `json:"maxSupply"` // null for uncapped assets
	CirculatingSupply decimal.NullDecimal `json:"circulatingSupply"`
	ATH               decimal.NullDecimal `json:"ath"`
	LastUpdated       string              `json:"lastUpdated"`
}

// MarketCapValue returns the market cap as a float64 sort key.
// Missing values map to negative infinity so every collection has a total order.
func (c CoinSummary) MarketCapValue() float64 {
	if !c.MarketCap.Valid {
		return math.Inf(-1)
	}
	f, _ := c.MarketCap.Decimal.Float64()
	return f
}
