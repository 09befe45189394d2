package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// counterpartyKey is the hash holding phone→kind registry entries.
const counterpartyKey = "warehouse_bot:counterparties"

// hsetBatch caps the number of field pairs written per HSET during a
// bulk replace.
const hsetBatch = 1000

// RedisRegistry implements Registry on a Redis hash. It exists for
// deployments where several bot instances share one counterparty cache;
// check states stay in SQLite either way.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(addr, password string, db int) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisRegistry{client: client}, nil
}

// Close closes the Redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// HasCounterparty checks whether a normalized phone is already registered.
func (r *RedisRegistry) HasCounterparty(ctx context.Context, phone string) (bool, error) {
	ok, err := r.client.HExists(ctx, counterpartyKey, phone).Result()
	if err != nil {
		return false, fmt.Errorf("check counterparty: %w", err)
	}
	return ok, nil
}

// AddCounterparty records a normalized phone in the registry.
func (r *RedisRegistry) AddCounterparty(ctx context.Context, phone, kind string) error {
	if err := r.client.HSet(ctx, counterpartyKey, phone, kind).Err(); err != nil {
		return fmt.Errorf("add counterparty: %w", err)
	}
	return nil
}

// CountCounterparties returns the registry size.
func (r *RedisRegistry) CountCounterparties(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, counterpartyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count counterparties: %w", err)
	}
	return int(n), nil
}

// ReplaceCounterparties swaps the whole registry for the given
// phone→kind entries atomically.
func (r *RedisRegistry) ReplaceCounterparties(ctx context.Context, entries map[string]string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, counterpartyKey)

	pairs := make([]any, 0, 2*hsetBatch)
	for phone, kind := range entries {
		pairs = append(pairs, phone, kind)
		if len(pairs) >= 2*hsetBatch {
			pipe.HSet(ctx, counterpartyKey, pairs...)
			pairs = pairs[:0]
		}
	}
	if len(pairs) > 0 {
		pipe.HSet(ctx, counterpartyKey, pairs...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace counterparties: %w", err)
	}
	return nil
}

// ClearCounterparties empties the registry.
func (r *RedisRegistry) ClearCounterparties(ctx context.Context) error {
	if err := r.client.Del(ctx, counterpartyKey).Err(); err != nil {
		return fmt.Errorf("clear counterparties: %w", err)
	}
	return nil
}
