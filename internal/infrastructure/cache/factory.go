package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OperationGuardFactory creates operation guards based on configuration
type OperationGuardFactory struct {
	redisConfig           config.RedisConfig
	guardConfig           config.GuardConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// OperationGuardFactoryOption is a functional option for configuring the factory
type OperationGuardFactoryOption func(*OperationGuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) OperationGuardFactoryOption {
	return func(f *OperationGuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory guard when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) OperationGuardFactoryOption {
	return func(f *OperationGuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewOperationGuardFactory creates a new factory
func NewOperationGuardFactory(redisCfg config.RedisConfig, guardCfg config.GuardConfig, opts ...OperationGuardFactoryOption) *OperationGuardFactory {
	f := &OperationGuardFactory{
		redisConfig:           redisCfg,
		guardConfig:           guardCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisGuard creates a Redis-based operation guard
func (f *OperationGuardFactory) CreateRedisGuard() (shared.OperationGuard, error) {
	redisCfg := RedisGuardConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	guard, err := NewRedisOperationGuard(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis operation guard: %w", err)
	}

	return guard, nil
}

// CreateInMemoryGuard creates an in-memory operation guard
// This is suitable for single-instance deployments and testing
// WARNING: In-memory guards do not share state across process instances,
// which can let concurrent saves race in distributed deployments
func (f *OperationGuardFactory) CreateInMemoryGuard() shared.OperationGuard {
	return NewInMemoryOperationGuard()
}

// CreateGuard creates an operation guard based on configuration
// When the guard is disabled it returns a no-op guard that always acquires.
// When Redis is enabled it tries Redis first and falls back to in-memory
// if Redis is unavailable and AllowInMemoryFallback is true
func (f *OperationGuardFactory) CreateGuard() (shared.OperationGuard, error) {
	if !f.guardConfig.Enabled {
		f.logger.Warn("save guard disabled, concurrent saves will not be serialized")
		return NoopOperationGuard{}, nil
	}

	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory save guard")
		return f.CreateInMemoryGuard(), nil
	}

	guard, err := f.CreateRedisGuard()
	if err == nil {
		f.logger.Info("using Redis save guard")
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for save guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory save guard. "+
		"Concurrent saves on other instances will not be serialized.",
		zap.Error(err),
	)
	return f.CreateInMemoryGuard(), nil
}

// NoopOperationGuard always acquires. Used when the guard is disabled.
type NoopOperationGuard struct{}

func (NoopOperationGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (NoopOperationGuard) Release(ctx context.Context, key string) error { return nil }

func (NoopOperationGuard) Close() error { return nil }

var _ shared.OperationGuard = NoopOperationGuard{}
