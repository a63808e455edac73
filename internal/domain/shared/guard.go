package shared

import (
	"context"
	"time"
)

// OperationGuard serializes non-reentrant operations across a deployment.
// The save orchestrator holds a guard per worksheet while a batch save is in
// flight: a second save for the same worksheet is rejected instead of racing
// the first. The TTL bounds how long a crashed holder can block the key.
type OperationGuard interface {
	// Acquire claims the key for the caller. Returns false if another
	// operation currently holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the key once the operation settles
	Release(ctx context.Context, key string) error

	// Close releases the guard's resources
	Close() error
}

// GuardConfig holds configuration for operation guarding
type GuardConfig struct {
	// TTL bounds how long a key stays claimed if never released.
	// Default: 2 minutes.
	TTL time.Duration

	// Enabled determines whether guarding is enforced
	Enabled bool
}

// DefaultGuardConfig returns the default guard configuration
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		TTL:     2 * time.Minute,
		Enabled: true,
	}
}
