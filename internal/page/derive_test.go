package page

import (
	"math/rand"
	"testing"

	"coinboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func coin(id, name string, marketCap string) models.CoinSummary {
	c := models.CoinSummary{ID: id, Name: name}
	if marketCap != "" {
		c.MarketCap = decimal.NewNullDecimal(decimal.RequireFromString(marketCap))
	}
	return c
}

func ids(coins []models.CoinSummary) []string {
	out := make([]string, 0, len(coins))
	for _, c := range coins {
		out = append(out, c.ID)
	}
	return out
}

var scenarioCoins = []models.CoinSummary{
	coin("btc", "Bitcoin", "800000"),
	coin("eth", "Ethereum", "400000"),
}

func TestScenarioSortAndToggle(t *testing.T) {
	state := State{SortOrder: models.SortAscending}
	assert.Equal(t, []string{"eth", "btc"}, ids(Derive(scenarioCoins, state)))

	state.SortOrder = state.SortOrder.Toggle()
	assert.Equal(t, []string{"btc", "eth"}, ids(Derive(scenarioCoins, state)))
}

func TestScenarioSearch(t *testing.T) {
	state := State{SearchTerm: "bit", SortOrder: models.SortAscending}
	assert.Equal(t, []string{"btc"}, ids(Derive(scenarioCoins, state)))
}

func TestFilterCoins(t *testing.T) {
	coins := []models.CoinSummary{
		coin("btc", "Bitcoin", "3"),
		coin("bch", "Bitcoin Cash", "1"),
		coin("eth", "Ethereum", "2"),
		coin("wbtc", "Wrapped BITCOIN", "4"),
	}

	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"btc", "bch", "eth", "wbtc"}},
		{"bitcoin", []string{"btc", "bch", "wbtc"}},
		{"BiTcOiN", []string{"btc", "bch", "wbtc"}},
		{"cash", []string{"bch"}},
		{" cash", []string{"bch"}},
		{"cash ", nil},
		{"doge", nil},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := FilterCoins(coins, tt.term)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterCoinsDoesNotAlias(t *testing.T) {
	coins := []models.CoinSummary{coin("a", "A", "1"), coin("b", "B", "2")}
	got := FilterCoins(coins, "")
	got[0].ID = "changed"
	assert.Equal(t, "a", coins[0].ID)
}

func TestSortCoinsOrderProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	coins := make([]models.CoinSummary, 50)
	for i := range coins {
		coins[i] = models.CoinSummary{
			ID:        string(rune('a' + i%26)),
			MarketCap: decimal.NewNullDecimal(decimal.NewFromFloat(r.Float64() * 1e9)),
		}
	}
	// a few coins without market cap
	coins[3].MarketCap = decimal.NullDecimal{}
	coins[17].MarketCap = decimal.NullDecimal{}

	asc := SortCoins(coins, models.SortAscending)
	for i := 1; i < len(asc); i++ {
		assert.LessOrEqual(t, asc[i-1].MarketCapValue(), asc[i].MarketCapValue())
	}

	desc := SortCoins(coins, models.SortDescending)
	for i := 1; i < len(desc); i++ {
		assert.GreaterOrEqual(t, desc[i-1].MarketCapValue(), desc[i].MarketCapValue())
	}

	assert.Len(t, asc, len(coins))
	assert.False(t, asc[0].MarketCap.Valid, "missing market caps sort first ascending")
	assert.False(t, desc[len(desc)-1].MarketCap.Valid, "missing market caps sort last descending")
}

func TestSortCoinsToggleTwiceIsIdentity(t *testing.T) {
	coins := []models.CoinSummary{
		coin("a", "A", "5"),
		coin("b", "B", "5"),
		coin("c", "C", ""),
		coin("d", "D", "1"),
	}

	order := models.SortAscending
	first := ids(SortCoins(coins, order))
	order = order.Toggle().Toggle()
	assert.Equal(t, first, ids(SortCoins(coins, order)))
}

func TestSortCoinsLeavesInputUntouched(t *testing.T) {
	input := []models.CoinSummary{coin("btc", "Bitcoin", "800000"), coin("eth", "Ethereum", "400000")}
	_ = SortCoins(input, models.SortAscending)
	assert.Equal(t, []string{"btc", "eth"}, ids(input))
}
