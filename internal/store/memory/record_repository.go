package memory

import (
	"context"
	"sync"

	"sensorwatch-go/internal/domain"
)

// DefaultArchiveCapacity bounds the in-memory archive.
const DefaultArchiveCapacity = 10000

// RecordRepository is an in-memory implementation of store.RecordRepository.
// It keeps the most recent envelopes up to a fixed capacity.
type RecordRepository struct {
	mu sync.RWMutex

	// envelopes is ordered oldest first.
	envelopes []domain.Envelope
	capacity  int
}

// NewRecordRepository creates a new in-memory record archive.
func NewRecordRepository(capacity int) *RecordRepository {
	if capacity <= 0 {
		capacity = DefaultArchiveCapacity
	}
	return &RecordRepository{
		envelopes: make([]domain.Envelope, 0, min(capacity, 1024)),
		capacity:  capacity,
	}
}

// Save stores a record as its envelope, dropping the oldest at capacity.
func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) error {
	env := domain.NewEnvelope(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.envelopes) >= r.capacity {
		copy(r.envelopes, r.envelopes[1:])
		r.envelopes = r.envelopes[:len(r.envelopes)-1]
	}
	r.envelopes = append(r.envelopes, env)

	return nil
}

// List retrieves envelopes matching the filter, newest first.
func (r *RecordRepository) List(ctx context.Context, filter domain.RecordFilter) ([]domain.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.Envelope, 0)
	for i := len(r.envelopes) - 1; i >= 0; i-- {
		if filter.Matches(r.envelopes[i]) {
			results = append(results, r.envelopes[i])
		}
	}

	// Apply offset and limit
	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}

	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return results[start:end], nil
}

// Len returns the number of archived envelopes.
func (r *RecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.envelopes)
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *RecordRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.envelopes = make([]domain.Envelope, 0)
}
