package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisThrottleStore counts login attempts in Redis so throttling holds
// across gateway replicas. Keys follow INCR-with-expiry semantics: the first
// attempt in a window sets the TTL, and once the count passes the limit the
// remaining TTL becomes the retry-after hint.
type redisThrottleStore struct {
	client  *redis.Client
	timeout time.Duration
}

func newRedisThrottleStore(addr, password string, timeout time.Duration) *redisThrottleStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &redisThrottleStore{client: client, timeout: timeout}
}

func (s *redisThrottleStore) Allow(key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if window < time.Second {
			window = time.Second
		}
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		return false, window, nil
	}
	return false, ttl, nil
}
