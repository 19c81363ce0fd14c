// Package redis provides Redis-based implementations of the store interfaces.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
)

// Keys used by the registry cache.
const (
	keyRegistry   = "registry:current"
	keyTombstones = "registry:tombstones"
)

// RegistryCache implements store.RegistryCache using Redis.
type RegistryCache struct {
	client redis.UniversalClient
}

// NewRegistryCache creates a new Redis-backed registry cache.
func NewRegistryCache(cfg *config.RedisConfig) (*RegistryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RegistryCache{client: client}, nil
}

// NewRegistryCacheWithClient wraps an existing client.
func NewRegistryCacheWithClient(client redis.UniversalClient) *RegistryCache {
	return &RegistryCache{client: client}
}

// SetRegistry replaces the cached registry with a JSON document.
func (c *RegistryCache) SetRegistry(ctx context.Context, entries []domain.RegistryEntry) (err error) {
	defer observe("write", time.Now(), &err)

	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := c.client.Set(ctx, keyRegistry, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set registry: %w", err)
	}

	return nil
}

// GetRegistry returns the cached registry. Returns nil, nil when unset.
func (c *RegistryCache) GetRegistry(ctx context.Context) (entries []domain.RegistryEntry, err error) {
	defer observe("read", time.Now(), &err)

	data, err := c.client.Get(ctx, keyRegistry).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}

	return entries, nil
}

// SetTombstones replaces the tombstone set in one transaction, so readers
// never see a half-written set.
func (c *RegistryCache) SetTombstones(ctx context.Context, topics []string) (err error) {
	defer observe("write", time.Now(), &err)

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyTombstones)
		if len(topics) > 0 {
			members := make([]interface{}, len(topics))
			for i, topic := range topics {
				members[i] = topic
			}
			pipe.SAdd(ctx, keyTombstones, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set tombstones: %w", err)
	}

	return nil
}

// GetTombstones returns the cached tombstone topics.
func (c *RegistryCache) GetTombstones(ctx context.Context) (topics []string, err error) {
	defer observe("read", time.Now(), &err)

	topics, err = c.client.SMembers(ctx, keyTombstones).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tombstones: %w", err)
	}

	return topics, nil
}

// Close closes the Redis connection.
func (c *RegistryCache) Close() error {
	return c.client.Close()
}

func observe(op string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "failure"
	}
	metrics.StorageOperationLatency.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
	metrics.StorageOperationsTotal.WithLabelValues("redis", op, status).Inc()
}
