package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Producer struct {
	topic  string
	client *kgo.Client
}

func NewProducer(brokers []string, topic string) *Producer {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}

	log.Printf("Kafka producer initialized for topic: %s", topic)
	return &Producer{topic: topic, client: client}
}

func (p *Producer) Close() {
	p.client.Close()
}

func (p *Producer) Publish(key, value []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   key,
		Value: value,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := p.client.ProduceSync(ctx, record)
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// PublishObjectAsync is fire-and-forget: rate fan-out must never block
// or fail a client request.
func (p *Producer) PublishObjectAsync(key []byte, obj any) {
	go func() {
		value, err := json.Marshal(obj)
		if err != nil {
			log.Printf("Failed to marshal object for Kafka: %v", err)
			return
		}
		if err := p.Publish(key, value); err != nil {
			log.Printf("Kafka async publish error: %v", err)
		}
	}()
}
