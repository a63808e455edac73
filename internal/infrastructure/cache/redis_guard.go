package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisOperationGuard implements OperationGuard using Redis
// This is suitable for distributed deployments where multiple instances
// need to agree on which save holds a worksheet
type RedisOperationGuard struct {
	client    *redis.Client
	keyPrefix string
}

// RedisGuardConfig holds Redis connection configuration
type RedisGuardConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisOperationGuard creates a new Redis-based operation guard
func NewRedisOperationGuard(cfg RedisGuardConfig) (*RedisOperationGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisOperationGuard{
		client:    client,
		keyPrefix: "guard:",
	}, nil
}

// NewRedisOperationGuardWithClient creates a guard with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisOperationGuardWithClient(client *redis.Client, keyPrefix string) *RedisOperationGuard {
	if keyPrefix == "" {
		keyPrefix = "guard:"
	}
	return &RedisOperationGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire attempts to take the guard for a key with a TTL
// Uses SETNX (SET if Not eXists) for atomic operation, so concurrent
// saves across instances resolve to exactly one holder
func (g *RedisOperationGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	redisKey := g.keyPrefix + key

	result, err := g.client.SetNX(ctx, redisKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire guard: %w", err)
	}

	return result, nil
}

// Release drops the guard for a key so the next save can proceed
func (g *RedisOperationGuard) Release(ctx context.Context, key string) error {
	redisKey := g.keyPrefix + key

	if err := g.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to release guard: %w", err)
	}

	return nil
}

// Close closes the Redis client
func (g *RedisOperationGuard) Close() error {
	return g.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (g *RedisOperationGuard) GetClient() *redis.Client {
	return g.client
}

// Ensure RedisOperationGuard implements OperationGuard
var _ shared.OperationGuard = (*RedisOperationGuard)(nil)
