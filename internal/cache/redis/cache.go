// Package redis is an embedding cache shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache initialized", zap.String("addr", addr), zap.Int("db", db))

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, "embedding:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get embedding cache: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return vector, true, nil
}

func (c *Cache) SetEmbedding(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	if err := c.client.Set(ctx, "embedding:"+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set embedding cache: %w", err)
	}
	return nil
}

func (c *Cache) Name() string {
	return "redis"
}

func (c *Cache) Close() error {
	return c.client.Close()
}
