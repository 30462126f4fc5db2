package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps pending transactions in Redis so state survives
// process restarts. A zero TTL keeps entries until confirmed or overwritten,
// matching the in-memory store's lifecycle.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore wraps an existing Redis client.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func pendingKey(sender string) string {
	return "pending_tx:" + sender
}

// Get returns the pending transaction for sender, or nil when absent.
func (s *RedisStateStore) Get(ctx context.Context, sender string) (*PendingTransaction, error) {
	raw, err := s.client.Get(ctx, pendingKey(sender)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bot: get pending transaction: %w", err)
	}
	var tx PendingTransaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return nil, fmt.Errorf("bot: decode pending transaction: %w", err)
	}
	return &tx, nil
}

// Set stores the pending transaction, overwriting any prior one for sender.
func (s *RedisStateStore) Set(ctx context.Context, sender string, tx PendingTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("bot: encode pending transaction: %w", err)
	}
	if err := s.client.Set(ctx, pendingKey(sender), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("bot: set pending transaction: %w", err)
	}
	return nil
}

// Clear removes the pending transaction for sender.
func (s *RedisStateStore) Clear(ctx context.Context, sender string) error {
	if err := s.client.Del(ctx, pendingKey(sender)).Err(); err != nil {
		return fmt.Errorf("bot: clear pending transaction: %w", err)
	}
	return nil
}
