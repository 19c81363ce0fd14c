// Package msglog provides the bounded, newest-first log of records
// emitted from the sensor bus.
package msglog

import (
	"sync"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
)

// DefaultCapacity is the number of records kept when no capacity is configured.
const DefaultCapacity = 100

// Log is a fixed-capacity record log. Appending at capacity evicts the
// oldest record regardless of its kind. Records are never deduplicated.
// Log is safe for concurrent use; readers always see a whole prior state.
type Log struct {
	mu sync.RWMutex

	// records is ordered oldest first; Snapshot reverses it.
	records  []domain.Record
	capacity int

	listeners []func()
}

// New creates an empty log holding at most capacity records.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		records:  make([]domain.Record, 0, capacity),
		capacity: capacity,
	}
}

// Append adds rec as the newest record, evicting the oldest at capacity.
func (l *Log) Append(rec domain.Record) {
	l.mu.Lock()
	evicted := len(l.records) >= l.capacity
	if evicted {
		copy(l.records, l.records[1:])
		l.records = l.records[:len(l.records)-1]
	}
	l.records = append(l.records, rec)
	size := len(l.records)
	listeners := l.listeners
	l.mu.Unlock()

	if evicted {
		metrics.LogEvictionsTotal.Inc()
	}
	metrics.LogSize.Set(float64(size))
	metrics.RecordsAppendedTotal.WithLabelValues(string(rec.Kind())).Inc()

	notify(listeners)
}

// Clear removes every record.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = make([]domain.Record, 0, l.capacity)
	listeners := l.listeners
	l.mu.Unlock()

	metrics.LogSize.Set(0)
	notify(listeners)
}

// Snapshot returns the records newest first. The returned slice is a copy
// and can be read any number of times.
func (l *Log) Snapshot() []domain.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Record, len(l.records))
	for i, rec := range l.records {
		result[len(l.records)-1-i] = rec
	}
	return result
}

// Len returns the number of records in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Capacity returns the maximum number of records the log keeps.
func (l *Log) Capacity() int {
	return l.capacity
}

// Subscribe registers fn to be called after every mutation. Callbacks run
// on the mutating goroutine, outside the log's lock, and must not block.
func (l *Log) Subscribe(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Copy on write so a mutation in flight keeps its own listener slice.
	listeners := make([]func(), len(l.listeners), len(l.listeners)+1)
	copy(listeners, l.listeners)
	l.listeners = append(listeners, fn)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
