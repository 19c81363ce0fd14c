// Package memory provides in-memory implementations of store interfaces.
// These are useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sync"

	"sensorwatch-go/internal/domain"
)

// RegistryCache is an in-memory implementation of store.RegistryCache.
type RegistryCache struct {
	mu sync.RWMutex

	entries    []domain.RegistryEntry
	tombstones []string

	// writes counts SetRegistry calls. Tests use it to observe coalescing.
	writes int
}

// NewRegistryCache creates a new in-memory registry cache.
func NewRegistryCache() *RegistryCache {
	return &RegistryCache{}
}

// SetRegistry replaces the cached registry.
func (c *RegistryCache) SetRegistry(ctx context.Context, entries []domain.RegistryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append([]domain.RegistryEntry(nil), entries...)
	c.writes++
	return nil
}

// GetRegistry returns a copy of the cached registry.
func (c *RegistryCache) GetRegistry(ctx context.Context) ([]domain.RegistryEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entries == nil {
		return nil, nil
	}
	return append([]domain.RegistryEntry(nil), c.entries...), nil
}

// SetTombstones replaces the cached tombstone set.
func (c *RegistryCache) SetTombstones(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tombstones = append([]string(nil), topics...)
	return nil
}

// GetTombstones returns a copy of the cached tombstones.
func (c *RegistryCache) GetTombstones(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.tombstones...), nil
}

// Writes returns how many times the registry was replaced.
func (c *RegistryCache) Writes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.writes
}

// Close is a no-op for the in-memory cache.
func (c *RegistryCache) Close() error {
	return nil
}
