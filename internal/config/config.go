package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"coinboard/internal/models"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	CoinGecko CoinGeckoConfig
	Redis     RedisConfig
	Cache     CacheConfig
	UI        UIConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	GRPCPort        int
	HTTPPort        int
	EnableGRPC      bool
	Environment     string
	ShutdownTimeout time.Duration
}

type CoinGeckoConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PubSubPrefix string
}

type CacheConfig struct {
	MarketsEnabled bool
	MarketsTTL     time.Duration
}

type UIConfig struct {
	DefaultCurrency    string
	CurrenciesFile     string
	SessionIdleTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			GRPCPort:        getEnvInt("SERVER_PORT", 50051),
			HTTPPort:        getEnvInt("HTTP_PORT", 8080),
			EnableGRPC:      getEnvBool("ENABLE_GRPC", true),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		},
		CoinGecko: CoinGeckoConfig{
			BaseURL:           getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			Timeout:           parseDuration(getEnv("COINGECKO_TIMEOUT", "10s"), 10*time.Second),
			RequestsPerSecond: getEnvFloat("COINGECKO_RPS", 0.5),
			Burst:             getEnvInt("COINGECKO_BURST", 3),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PubSubPrefix: getEnv("REDIS_PUBSUB_PREFIX", "coinboard:markets"),
		},
		Cache: CacheConfig{
			MarketsEnabled: getEnvBool("MARKETS_CACHE_ENABLED", false),
			MarketsTTL:     time.Duration(getEnvInt("CACHE_TTL_MARKETS", 30)) * time.Second,
		},
		UI: UIConfig{
			DefaultCurrency:    getEnv("DEFAULT_CURRENCY", string(models.DefaultCurrency)),
			CurrenciesFile:     getEnv("CURRENCIES_FILE", "config/currencies.yaml"),
			SessionIdleTimeout: parseDuration(getEnv("SESSION_IDLE_TIMEOUT", "30m"), 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CoinGecko.BaseURL == "" {
		return fmt.Errorf("COINGECKO_BASE_URL is required")
	}
	if c.CoinGecko.RequestsPerSecond <= 0 {
		return fmt.Errorf("COINGECKO_RPS must be positive")
	}
	if c.Server.HTTPPort <= 0 {
		return fmt.Errorf("HTTP_PORT must be positive")
	}
	if _, err := models.ParseCurrency(c.UI.DefaultCurrency); err != nil {
		return fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}
	if c.Cache.MarketsEnabled && !c.Redis.Enabled {
		return fmt.Errorf("MARKETS_CACHE_ENABLED requires REDIS_ENABLED")
	}
	return nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}
