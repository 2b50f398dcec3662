package config

import (
	"os"
	"strconv"
	"time"

	"github.com/valentingnt/investr-sub000/internal/db"
)

// ProviderConfig holds one provider's credential default and call ceilings.
// A PerDay of zero means no daily ceiling is enforced.
type ProviderConfig struct {
	APIKey    string
	PerMinute int
	PerDay    int
}

// Config is the full runtime configuration, read from the environment with
// sensible free-tier defaults.
type Config struct {
	ListenAddr    string
	QuoteCurrency string

	DB db.Config

	MemoryTTL    time.Duration
	PersistedTTL time.Duration
	PrewarmCount int

	Providers map[string]ProviderConfig
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		QuoteCurrency: getEnv("QUOTE_CURRENCY", "EUR"),
		DB:            db.NewConfig(),
		MemoryTTL:     time.Duration(getEnvInt("MEMORY_TTL_SECONDS", 20)) * time.Second,
		PersistedTTL:  time.Duration(getEnvInt("PERSISTED_TTL_MINUTES", 180)) * time.Minute,
		PrewarmCount:  getEnvInt("PREWARM_COUNT", 20),
		Providers: map[string]ProviderConfig{
			"coingecko": {
				APIKey:    os.Getenv("COINGECKO_API_KEY"),
				PerMinute: getEnvInt("COINGECKO_PER_MINUTE", 10),
			},
			"coinmarketcap": {
				APIKey:    os.Getenv("COINMARKETCAP_API_KEY"),
				PerMinute: getEnvInt("COINMARKETCAP_PER_MINUTE", 30),
				PerDay:    getEnvInt("COINMARKETCAP_PER_DAY", 333),
			},
			"finnhub": {
				APIKey:    os.Getenv("FINNHUB_API_KEY"),
				PerMinute: getEnvInt("FINNHUB_PER_MINUTE", 60),
			},
			"twelvedata": {
				APIKey:    os.Getenv("TWELVEDATA_API_KEY"),
				PerMinute: getEnvInt("TWELVEDATA_PER_MINUTE", 8),
				PerDay:    getEnvInt("TWELVEDATA_PER_DAY", 800),
			},
			"alphavantage": {
				APIKey:    os.Getenv("ALPHAVANTAGE_API_KEY"),
				PerMinute: getEnvInt("ALPHAVANTAGE_PER_MINUTE", 5),
				PerDay:    getEnvInt("ALPHAVANTAGE_PER_DAY", 25),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
