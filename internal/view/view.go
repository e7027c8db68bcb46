// Package view renders the coin table, the coin detail modal and the page
// that composes them. Rendering is pure: output depends only on the input.
package view

import (
	"embed"
	"html/template"
	"io"

	"coinboard/internal/models"
	"coinboard/internal/page"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("coinboard").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"),
)

// PageData is everything the page template needs
type PageData struct {
	State      page.State
	Coins      []models.CoinSummary
	Currencies []models.Currency
	Generation uint64
}

// NewPageData builds page data from a controller snapshot
func NewPageData(snap page.Snapshot, currencies []models.Currency) PageData {
	return PageData{
		State:      snap.State,
		Coins:      snap.Coins,
		Currencies: currencies,
		Generation: snap.Generation,
	}
}

// FuncMap returns the helpers available to the templates
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"decimal": FormatDecimal,
	}
}

// Templates returns the parsed template set
func Templates() *template.Template {
	return templates
}

// FormatDecimal renders a nullable number; missing values render empty
func FormatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// RenderCoinList writes one table row per coin
func RenderCoinList(w io.Writer, coins []models.CoinSummary) error {
	return templates.ExecuteTemplate(w, "coin_list", coins)
}

// RenderCoinDetail writes the detail modal for coin
func RenderCoinDetail(w io.Writer, coin models.CoinSummary) error {
	return templates.ExecuteTemplate(w, "coin_detail", coin)
}

// RenderPage writes the full page
func RenderPage(w io.Writer, data PageData) error {
	return templates.ExecuteTemplate(w, "page", data)
}
