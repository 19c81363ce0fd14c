// Package store defines interfaces for data persistence and state mirroring.
// These abstractions allow swapping implementations (Redis, PostgreSQL, in-memory)
// without changing business logic.
package store

import (
	"context"

	"sensorwatch-go/internal/domain"
)

// RegistryCache mirrors the materialized event registry and the local
// tombstone set so other processes can read them and deletes survive a
// restart. All methods must be safe for concurrent use.
type RegistryCache interface {
	// SetRegistry replaces the cached registry.
	SetRegistry(ctx context.Context, entries []domain.RegistryEntry) error

	// GetRegistry returns the cached registry. Returns nil, nil when empty.
	GetRegistry(ctx context.Context) ([]domain.RegistryEntry, error)

	// SetTombstones replaces the cached tombstone set.
	SetTombstones(ctx context.Context, topics []string) error

	// GetTombstones returns the cached tombstone topics.
	GetTombstones(ctx context.Context) ([]string, error)

	// Close releases any resources held by the cache.
	Close() error
}
