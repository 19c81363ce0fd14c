package store

import (
	"context"

	"sensorwatch-go/internal/domain"
)

// RecordRepository defines the interface for the record archive.
// The archive outlives the bounded message log and backs history queries.
// This is typically backed by PostgreSQL for production use.
type RecordRepository interface {
	// Save stores a record as its envelope.
	Save(ctx context.Context, rec domain.Record) error

	// List retrieves archived envelopes, newest first, matching the filter.
	List(ctx context.Context, filter domain.RecordFilter) ([]domain.Envelope, error)
}
