package kafka

import (
	"context"
	"log"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Consumer struct {
	client *kgo.Client
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(brokers []string, topic, group string) *Consumer {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}

	log.Printf("Kafka consumer initialized (topic: %s, group: %s)", topic, group)
	return &Consumer{client: client, done: make(chan struct{})}
}

func (c *Consumer) Start(handle func(key, value []byte)) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		defer close(c.done)
		for {
			fetches := c.client.PollFetches(ctx)
			if ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				log.Printf("Kafka fetch error (%s/%d): %v", topic, partition, err)
			})
			fetches.EachRecord(func(record *kgo.Record) {
				handle(record.Key, record.Value)
			})
		}
	}()
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.client.Close()
}
