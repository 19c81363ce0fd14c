// Package registry derives the set of live event definitions from the
// message log. The registry is never stored as truth: it is recomputed
// from a log snapshot and the set of locally deleted topics.
package registry

import (
	"sort"
	"sync"

	"sensorwatch-go/internal/domain"
)

// Entry is one live event definition.
type Entry = domain.RegistryEntry

// Materialize scans a newest-first snapshot and keeps the first event
// definition seen per normalized topic. Topics in tombstones are
// suppressed everywhere in the window. Output preserves first-seen order.
//
// Definitions that were evicted from the log are not visible.
func Materialize(snapshot []domain.Record, tombstones map[string]struct{}) []Entry {
	seen := make(map[string]struct{})
	entries := make([]Entry, 0)

	for _, rec := range snapshot {
		def, ok := rec.(*domain.EventDefinition)
		if !ok {
			continue
		}

		topic := domain.NormalizeTopic(def.SourceTopic)
		if _, deleted := tombstones[topic]; deleted {
			continue
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		entries = append(entries, domain.NewRegistryEntry(topic, *def))
	}

	return entries
}

// TombstoneSet is the set of normalized topics deleted by this process
// or observed as deleted on the bus. Safe for concurrent use.
type TombstoneSet struct {
	mu     sync.RWMutex
	topics map[string]struct{}
}

// NewTombstoneSet creates an empty set.
func NewTombstoneSet() *TombstoneSet {
	return &TombstoneSet{topics: make(map[string]struct{})}
}

// Add marks a topic as deleted. It reports whether the set changed.
func (t *TombstoneSet) Add(topic string) bool {
	topic = domain.NormalizeTopic(topic)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.topics[topic]; ok {
		return false
	}
	t.topics[topic] = struct{}{}
	return true
}

// Remove clears a topic's deleted mark. It reports whether the set changed.
func (t *TombstoneSet) Remove(topic string) bool {
	topic = domain.NormalizeTopic(topic)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.topics[topic]; !ok {
		return false
	}
	delete(t.topics, topic)
	return true
}

// Contains reports whether a topic is marked deleted.
func (t *TombstoneSet) Contains(topic string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.topics[domain.NormalizeTopic(topic)]
	return ok
}

// Snapshot returns a copy of the set.
func (t *TombstoneSet) Snapshot() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]struct{}, len(t.topics))
	for topic := range t.topics {
		result[topic] = struct{}{}
	}
	return result
}

// Topics returns the deleted topics in sorted order.
func (t *TombstoneSet) Topics() []string {
	snap := t.Snapshot()
	result := make([]string, 0, len(snap))
	for topic := range snap {
		result = append(result, topic)
	}
	sort.Strings(result)
	return result
}
