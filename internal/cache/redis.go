package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) (float64, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable(err)
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		// Stale or foreign payload, treat as a miss.
		return 0, false, nil
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) GetBatch(ctx context.Context, prefix string, keys []string) (map[string]*float64, error) {
	result := make(map[string]*float64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = joinKey(prefix, k)
	}

	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	for i, raw := range values {
		result[keys[i]] = nil
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var value float64
		if err := json.Unmarshal([]byte(str), &value); err != nil {
			continue
		}
		v := value
		result[keys[i]] = &v
	}
	return result, nil
}

func (s *RedisStore) SetBatch(ctx context.Context, prefix string, values map[string]float64, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, joinKey(prefix, k), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, unavailable(err)
		}
	}
	return count, nil
}

func (s *RedisStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
