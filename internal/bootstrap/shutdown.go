package bootstrap

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"currency-gateway/internal/kafka"

	"github.com/redis/go-redis/v9"
)

func GracefulShutdown(
	srv *http.Server,
	cancel context.CancelFunc,
	redisClient *redis.Client,
	producer *kafka.Producer,
	consumer *kafka.Consumer,
) {
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		log.Println("Shutting down gracefully...")
		cancel()

		if consumer != nil {
			consumer.Stop()
		}
		if producer != nil {
			producer.Close()
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Printf("Redis close error: %v", err)
			}
		}

		ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
		defer timeout()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()
}
