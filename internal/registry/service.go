package registry

import (
	"context"
	"log/slog"
	"sync"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/msglog"
	"sensorwatch-go/internal/store"
)

// Service answers registry queries against the live log and keeps the
// tombstone set. When a cache is configured, Watch mirrors every change.
// The mirror is write-only: tombstones live only as long as the process.
type Service struct {
	log        *msglog.Log
	tombstones *TombstoneSet
	cache      store.RegistryCache
	logger     *slog.Logger

	// snapMu makes the log and tombstone snapshots of Current a pair
	// taken without a tombstone change in between.
	snapMu sync.RWMutex

	// changed holds at most one pending refresh; extra signals coalesce.
	changed chan struct{}
}

// NewService creates a registry service over log. cache may be nil.
func NewService(log *msglog.Log, cache store.RegistryCache, logger *slog.Logger) *Service {
	s := &Service{
		log:        log,
		tombstones: NewTombstoneSet(),
		cache:      cache,
		logger:     logger,
		changed:    make(chan struct{}, 1),
	}
	log.Subscribe(s.signal)
	return s
}

// Tombstones returns the service's tombstone set.
func (s *Service) Tombstones() *TombstoneSet {
	return s.tombstones
}

// Current materializes the registry from the current log contents.
func (s *Service) Current() []Entry {
	s.snapMu.RLock()
	snapshot := s.log.Snapshot()
	tombstones := s.tombstones.Snapshot()
	s.snapMu.RUnlock()

	entries := Materialize(snapshot, tombstones)
	metrics.RegistryEntries.Set(float64(len(entries)))
	return entries
}

// Lookup returns the live entry for a topic or event name.
func (s *Service) Lookup(topic string) (Entry, bool) {
	topic = domain.NormalizeTopic(topic)
	for _, entry := range s.Current() {
		if entry.Topic == topic {
			return entry, true
		}
	}
	return Entry{}, false
}

// MarkDeleted hides a topic from the registry until it is revived.
func (s *Service) MarkDeleted(topic string) {
	s.snapMu.Lock()
	changed := s.tombstones.Add(topic)
	s.snapMu.Unlock()

	if changed {
		s.logger.Debug("event topic tombstoned", "topic", domain.NormalizeTopic(topic))
		s.signal()
	}
}

// Revive makes a previously deleted topic visible again. It is called
// when a new definition for the topic is seen on the bus.
func (s *Service) Revive(topic string) {
	s.snapMu.Lock()
	changed := s.tombstones.Remove(topic)
	s.snapMu.Unlock()

	if changed {
		s.logger.Debug("event topic revived", "topic", domain.NormalizeTopic(topic))
		s.signal()
	}
}

// Watch mirrors the registry to the cache after every change until ctx
// is canceled. Refreshes are coalesced: a burst of log appends produces
// one cache write. Cache errors are logged and do not stop the loop.
func (s *Service) Watch(ctx context.Context) error {
	if s.cache == nil {
		<-ctx.Done()
		return nil
	}

	// Publish the initial view.
	s.signal()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
			if err := s.sync(ctx); err != nil {
				s.logger.Warn("failed to mirror registry", "error", err)
			}
		}
	}
}

func (s *Service) sync(ctx context.Context) error {
	if err := s.cache.SetRegistry(ctx, s.Current()); err != nil {
		return err
	}
	return s.cache.SetTombstones(ctx, s.tombstones.Topics())
}

func (s *Service) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
