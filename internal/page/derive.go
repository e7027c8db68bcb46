package page

import (
	"cmp"
	"slices"
	"strings"

	"coinboard/internal/models"
)

// FilterCoins returns the coins whose name contains term, ignoring case.
// An empty term keeps every coin. The input is never modified.
func FilterCoins(coins []models.CoinSummary, term string) []models.CoinSummary {
	if term == "" {
		return slices.Clone(coins)
	}

	needle := strings.ToLower(term)
	filtered := make([]models.CoinSummary, 0, len(coins))
	for _, coin := range coins {
		if strings.Contains(strings.ToLower(coin.Name), needle) {
			filtered = append(filtered, coin)
		}
	}
	return filtered
}

// SortCoins returns a copy of coins ordered by market cap.
// Coins without a market cap sort as negative infinity.
func SortCoins(coins []models.CoinSummary, order models.SortOrder) []models.CoinSummary {
	sorted := slices.Clone(coins)
	slices.SortStableFunc(sorted, func(a, b models.CoinSummary) int {
		if order == models.SortDescending {
			return cmp.Compare(b.MarketCapValue(), a.MarketCapValue())
		}
		return cmp.Compare(a.MarketCapValue(), b.MarketCapValue())
	})
	return sorted
}

// Derive applies the search filter and then the sort order from state
func Derive(coins []models.CoinSummary, state State) []models.CoinSummary {
	return SortCoins(FilterCoins(coins, state.SearchTerm), state.SortOrder)
}
