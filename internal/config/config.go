package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is populated once at startup and passed down. Nothing below the
// bootstrap layer reads the environment.
type Config struct {
	Port     string
	RedisURL string

	CurrencyAPIURL  string
	CurrencyAPIKey  string
	CoinGeckoURL    string
	CoinGeckoKey    string
	UpstreamTimeout time.Duration

	FiatTTL   time.Duration
	CryptoTTL time.Duration
	LatestTTL time.Duration

	RateLimitMax    int64
	RateLimitWindow time.Duration
	BlockDuration   time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	PrewarmInterval time.Duration
	PrewarmBases    int

	AdminToken string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded (ok for prod)")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		RedisURL: os.Getenv("REDIS_URL"),

		CurrencyAPIURL:  os.Getenv("CURRENCY_API_URL"),
		CurrencyAPIKey:  os.Getenv("FREECURRENCY_API_KEY"),
		CoinGeckoURL:    os.Getenv("COINGECKO_API_URL"),
		CoinGeckoKey:    os.Getenv("COINGECKO_API_KEY"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		FiatTTL:   getEnvDuration("FIAT_CACHE_TTL", 6*time.Hour),
		CryptoTTL: getEnvDuration("CRYPTO_CACHE_TTL", 2*time.Hour),
		LatestTTL: getEnvDuration("LATEST_CACHE_TTL", 15*time.Minute),

		RateLimitMax:    getEnvInt64("RATE_LIMIT_MAX", 35),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		BlockDuration:   getEnvDuration("RATE_LIMIT_BLOCK", time.Hour),

		KafkaTopic: getEnv("KAFKA_TOPIC", "rate-updates"),
		KafkaGroup: getEnv("KAFKA_GROUP", "rate-cache-syncer"),

		PrewarmInterval: getEnvDuration("PREWARM_INTERVAL", 30*time.Minute),
		PrewarmBases:    int(getEnvInt64("PREWARM_BASES", 3)),

		AdminToken: os.Getenv("ADMIN_TOKEN"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.CryptoTTL > cfg.FiatTTL {
		log.Printf("CRYPTO_CACHE_TTL %s exceeds FIAT_CACHE_TTL %s, clamping", cfg.CryptoTTL, cfg.FiatTTL)
		cfg.CryptoTTL = cfg.FiatTTL
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration for %s, using %s", key, fallback)
		return fallback
	}
	return d
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid number for %s, using %d", key, fallback)
		return fallback
	}
	return n
}
