package cache

import (
	"context"
	"sync"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
)

// lease represents a held guard key with expiration
type lease struct {
	expiresAt time.Time
}

// InMemoryOperationGuard implements OperationGuard using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryOperationGuard struct {
	mu        sync.RWMutex
	leases    map[string]lease
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryOperationGuard creates a new in-memory operation guard
// It starts a background goroutine to clean up expired leases
func NewInMemoryOperationGuard() *InMemoryOperationGuard {
	guard := &InMemoryOperationGuard{
		leases:   make(map[string]lease),
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	guard.wg.Add(1)
	go guard.cleanupLoop()

	return guard
}

// Acquire attempts to take the guard for a key with a TTL
// Returns true if the guard was taken, false if another holder has it
func (g *InMemoryOperationGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Check if already held and not expired
	if l, exists := g.leases[key]; exists {
		if time.Now().Before(l.expiresAt) {
			return false, nil // Another save holds the guard
		}
		// Lease exists but expired, will be overwritten
	}

	g.leases[key] = lease{
		expiresAt: time.Now().Add(ttl),
	}

	return true, nil
}

// Release drops the guard for a key so the next save can proceed
func (g *InMemoryOperationGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.leases, key)
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (g *InMemoryOperationGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired leases
func (g *InMemoryOperationGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

// cleanup removes expired leases from the guard
func (g *InMemoryOperationGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, l := range g.leases {
		if now.After(l.expiresAt) {
			delete(g.leases, key)
		}
	}
}

// Size returns the number of held leases (for testing/monitoring)
func (g *InMemoryOperationGuard) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.leases)
}

// Ensure InMemoryOperationGuard implements OperationGuard
var _ shared.OperationGuard = (*InMemoryOperationGuard)(nil)
