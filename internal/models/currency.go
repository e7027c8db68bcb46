package models

import (
	"errors"
	"fmt"
	"strings"
)

// Currency is a vs_currency code offered by the currency selector
type Currency string

const (
	INR Currency = "INR"
	USD Currency = "USD"
	EUR Currency = "EUR"

	DefaultCurrency = INR
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// SupportedCurrencies returns the selector options in display order
func SupportedCurrencies() []Currency {
	return []Currency{INR, USD, EUR}
}

// ParseCurrency parses a currency code case-insensitively
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range SupportedCurrencies() {
		if c == code {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
}

func (c Currency) String() string {
	return string(c)
}

// Query returns the code in the form the upstream API expects
func (c Currency) Query() string {
	return strings.ToLower(string(c))
}

// SortOrder is the market cap sort direction
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Toggle flips ascending and descending
func (o SortOrder) Toggle() SortOrder {
	if o == SortAscending {
		return SortDescending
	}
	return SortAscending
}

// Label is the sort button caption
func (o SortOrder) Label() string {
	if o == SortAscending {
		return "Low to High"
	}
	return "High to Low"
}
