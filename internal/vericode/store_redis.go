package vericode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"secureid/internal/domain"
	"secureid/pkg/platform/sentinel"
)

const bindingKeyPrefix = "vericode:binding:"

// RedisBindingStore persists bindings in Redis with the code TTL applied as
// the key TTL, so expired bindings vanish without a sweeper.
type RedisBindingStore struct {
	client *redis.Client
	clock  Clock
}

// RedisOption configures a RedisBindingStore.
type RedisOption func(*RedisBindingStore)

// WithRedisClock sets the clock function for testability.
func WithRedisClock(clock Clock) RedisOption {
	return func(s *RedisBindingStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRedisBindingStore constructs a Redis-backed binding store.
func NewRedisBindingStore(client *redis.Client, opts ...RedisOption) *RedisBindingStore {
	store := &RedisBindingStore{
		client: client,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func bindingKey(holder domain.Address) string {
	return bindingKeyPrefix + holder.String()
}

// Save stores the binding under the holder's key with the remaining TTL.
// A binding already past its window is rejected rather than stored dead.
func (s *RedisBindingStore) Save(ctx context.Context, binding Binding) error {
	ttl := binding.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	payload, err := json.Marshal(binding)
	if err != nil {
		return fmt.Errorf("marshal binding: %w", err)
	}
	if err := s.client.Set(ctx, bindingKey(binding.Holder), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

// Find returns the holder's current binding, or sentinel.ErrNotFound once the
// key has expired or was never written.
func (s *RedisBindingStore) Find(ctx context.Context, holder domain.Address) (Binding, error) {
	raw, err := s.client.Get(ctx, bindingKey(holder)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Binding{}, sentinel.ErrNotFound
		}
		return Binding{}, fmt.Errorf("find binding: %w", err)
	}
	var binding Binding
	if err := json.Unmarshal(raw, &binding); err != nil {
		return Binding{}, fmt.Errorf("unmarshal binding: %w", err)
	}
	return binding, nil
}

// Delete discards the holder's binding.
func (s *RedisBindingStore) Delete(ctx context.Context, holder domain.Address) error {
	if err := s.client.Del(ctx, bindingKey(holder)).Err(); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}
