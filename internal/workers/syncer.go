package workers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"currency-gateway/internal/cache"
	"currency-gateway/internal/kafka"
	"currency-gateway/internal/models"
)

// StartRateSyncer mirrors rate-update events published by other gateway
// replicas into the local cache, so one upstream fetch warms everyone.
func StartRateSyncer(store cache.Store, consumer *kafka.Consumer) {
	if consumer == nil {
		return
	}

	consumer.Start(func(key, value []byte) {
		var update models.RateUpdate
		if err := json.Unmarshal(value, &update); err != nil {
			log.Printf("RateSyncer: unmarshal failed: %v", err)
			return
		}
		if update.Prefix == "" || len(update.Rates) == 0 {
			log.Println("RateSyncer: empty update, skipping")
			return
		}

		ctx := context.Background()
		ttl := time.Duration(update.TTLSeconds) * time.Second
		if err := store.SetBatch(ctx, update.Prefix, update.Rates, ttl); err != nil {
			log.Printf("RateSyncer: failed to sync %s: %v", update.Prefix, err)
			return
		}
		log.Printf("RateSyncer: synced %d rates under %s", len(update.Rates), update.Prefix)
	})
}
