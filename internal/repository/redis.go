package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stocktake/internal/config"
	"stocktake/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisScanStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisScanStateRepository(client *redis.Client, ttl time.Duration) *RedisScanStateRepository {
	return &RedisScanStateRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisScanStateRepository) GetState(ctx context.Context, operatorID string) (*models.ScanState, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := scanStateKey(operatorID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan state from redis: %w", err)
	}

	var state models.ScanState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan state: %w", err)
	}

	return &state, nil
}

func (r *RedisScanStateRepository) SetState(ctx context.Context, state *models.ScanState) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := scanStateKey(state.OperatorID)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal scan state: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set scan state in redis: %w", err)
	}

	return nil
}

func (r *RedisScanStateRepository) ClearState(ctx context.Context, operatorID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, scanStateKey(operatorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete scan state from redis: %w", err)
	}
	return nil
}

func scanStateKey(operatorID string) string {
	return fmt.Sprintf("scan_state:%s", operatorID)
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
