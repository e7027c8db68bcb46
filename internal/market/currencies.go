package market

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"coinboard/internal/models"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoCurrencies         = errors.New("no currencies found in config file")
	ErrDefaultNotSelectable = errors.New("default currency is not in the selector list")
)

// CurrencyConfig represents the YAML configuration structure
type CurrencyConfig struct {
	Currencies []string `yaml:"currencies"`
}

// LoadCurrenciesFromYAML loads the currency selector options from a YAML file
func LoadCurrenciesFromYAML(filePath string) ([]models.Currency, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read currencies file: %w", err)
	}

	var config CurrencyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse currencies YAML: %w", err)
	}

	if len(config.Currencies) == 0 {
		return nil, ErrNoCurrencies
	}

	currencies := make([]models.Currency, 0, len(config.Currencies))
	seen := make(map[models.Currency]bool)
	for _, code := range config.Currencies {
		c, err := models.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			currencies = append(currencies, c)
		}
	}

	return currencies, nil
}

// LoadCurrenciesWithFallback tries to load from YAML, falls back to every supported currency
func LoadCurrenciesWithFallback(filePath string) []models.Currency {
	currencies, err := LoadCurrenciesFromYAML(filePath)
	if err != nil {
		return models.SupportedCurrencies()
	}
	return currencies
}

// ResolveDefaultCurrency parses code and checks it is one of the selector options
func ResolveDefaultCurrency(code string, currencies []models.Currency) (models.Currency, error) {
	currency, err := models.ParseCurrency(code)
	if err != nil {
		return "", err
	}
	if !slices.Contains(currencies, currency) {
		return "", fmt.Errorf("%w: %s not in %v", ErrDefaultNotSelectable, currency, currencies)
	}
	return currency, nil
}
