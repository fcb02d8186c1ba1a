package main

import (
	"context"
	"log"
	"net/http"

	"currency-gateway/internal/bootstrap"
	"currency-gateway/internal/cache"
	"currency-gateway/internal/config"
	"currency-gateway/internal/currencies"
	"currency-gateway/internal/db"
	"currency-gateway/internal/handlers"
	"currency-gateway/internal/kafka"
	"currency-gateway/internal/metrics"
	"currency-gateway/internal/popular"
	"currency-gateway/internal/ratelimit"
	"currency-gateway/internal/service"
	"currency-gateway/internal/upstream"
	"currency-gateway/internal/workers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// ------------------------
	// Cache store
	// ------------------------
	var redisClient *redis.Client
	var store cache.Store
	if cfg.RedisURL != "" {
		redisClient = db.ConnectRedis(cfg.RedisURL)
		store = cache.NewRedisStore(redisClient)
	} else {
		log.Println("REDIS_URL not set, falling back to in-memory cache")
		store = cache.NewMemoryStore()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := currencies.NewClassifier()

	// ------------------------
	// Upstream providers
	// ------------------------
	currencyAPI := upstream.NewCurrencyAPI(cfg.CurrencyAPIURL, cfg.CurrencyAPIKey, cfg.UpstreamTimeout)

	var cryptoProvider upstream.Provider
	if cfg.CoinGeckoKey != "" || cfg.CoinGeckoURL != "" {
		cryptoProvider = upstream.NewCoinGecko(cfg.CoinGeckoURL, cfg.CoinGeckoKey, cfg.UpstreamTimeout)
		log.Println("CoinGecko enabled for crypto targets")
	}

	// ------------------------
	// Kafka (optional)
	// ------------------------
	var producer *kafka.Producer
	var consumer *kafka.Consumer
	var publisher service.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup)
		workers.StartRateSyncer(store, consumer)
		publisher = producer
	}

	// ------------------------
	// Services
	// ------------------------
	resolver := service.NewResolver(store, currencyAPI, cryptoProvider, checker, publisher, m, service.Config{
		FiatTTL:   cfg.FiatTTL,
		CryptoTTL: cfg.CryptoTTL,
		LatestTTL: cfg.LatestTTL,
	})

	limiter := ratelimit.NewLimiter(store, ratelimit.Config{
		MaxRequests:   cfg.RateLimitMax,
		Window:        cfg.RateLimitWindow,
		BlockDuration: cfg.BlockDuration,
	})

	tracker := popular.NewTracker(redisClient)
	ratesHandler := handlers.NewRatesHandler(resolver, limiter, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient != nil {
		prewarmer := popular.NewPrewarmer(tracker, resolver, cfg.PrewarmInterval, cfg.PrewarmBases)
		go prewarmer.Start(ctx)
	}

	// ------------------------
	// HTTP server
	// ------------------------
	var ping func(ctx context.Context) error
	if redisClient != nil {
		ping = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router := bootstrap.InitRoutes(ratesHandler, limiter, m, cfg.AdminToken, ping)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	bootstrap.GracefulShutdown(srv, cancel, redisClient, producer, consumer)

	log.Printf("Server started on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
