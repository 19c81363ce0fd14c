// Package processor handles the inbound side of the bus.
// It consumes publications from the transport, classifies them by topic,
// turns them into records, and appends them to the message log.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/msglog"
	"sensorwatch-go/internal/notification"
	"sensorwatch-go/internal/queue"
	"sensorwatch-go/internal/reconcile"
	"sensorwatch-go/internal/store"
	"sensorwatch-go/internal/topic"
)

// Registry receives tombstones and revivals observed on the bus.
type Registry interface {
	MarkDeleted(topic string)
	Revive(topic string)
}

// Service processes bus messages and owns the partial reconciler.
// It is the only writer of the message log.
// It is responsible for:
// - Routing each message by its topic
// - Accumulating partial sensor fields into complete readings
// - Recording deletes observed on event topics
// - Archiving records and notifying about fired alerts
type Service struct {
	consumer queue.Consumer
	log      *msglog.Log
	registry Registry
	archive  store.RecordRepository
	notifier notification.Notifier
	logger   *slog.Logger

	// mu guards reconciler against Stop racing the consumer loop.
	mu         sync.Mutex
	reconciler *reconcile.Reconciler
}

// NewService creates a new processor service. archive may be nil.
func NewService(
	consumer queue.Consumer,
	log *msglog.Log,
	registry Registry,
	archive store.RecordRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		consumer:   consumer,
		log:        log,
		registry:   registry,
		archive:    archive,
		notifier:   notifier,
		logger:     logger,
		reconciler: reconcile.New(),
	}
}

// Start begins consuming messages and processing them.
// This is a blocking call that runs until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting processor service")
	return s.consumer.Start(ctx, s.handleMessage)
}

// handleMessage is the callback for processing each message from the bus.
// Malformed payloads are counted and dropped; it never returns an error,
// so one bad publication cannot halt the stream.
func (s *Service) handleMessage(ctx context.Context, msg *queue.Message) error {
	start := time.Now()
	defer func() {
		metrics.MessageProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	c := topic.Classify(msg.Topic)
	metrics.MessagesReceivedTotal.WithLabelValues(string(c.Route)).Inc()

	switch c.Route {
	case topic.RouteAlert:
		s.handleAlert(ctx, c, msg)
	case topic.RouteEvent:
		s.handleEvent(ctx, c, msg)
	case topic.RoutePartial:
		s.handlePartial(ctx, c, msg)
	case topic.RouteStatus:
		s.handleStatus(ctx, c, msg)
	case topic.RouteIgnored:
		s.logger.Debug("ignoring message", "topic", msg.Topic)
	}

	return nil
}

func (s *Service) handleAlert(ctx context.Context, c topic.Classification, msg *queue.Message) {
	alert, err := domain.DecodeAlert(c.Topic, msg.Payload)
	if err != nil {
		s.dropped(c, err)
		return
	}
	s.emit(ctx, alert)
}

func (s *Service) handleEvent(ctx context.Context, c topic.Classification, msg *queue.Message) {
	if c.IsTombstone(msg.Payload) {
		metrics.TombstonesObservedTotal.Inc()
		s.registry.MarkDeleted(c.Topic)
		return
	}

	rec, err := domain.DecodeEventPayload(c.Topic, msg.Payload)
	if err != nil {
		s.dropped(c, err)
		return
	}

	if _, ok := rec.(*domain.EventDefinition); ok {
		// A definition on a deleted topic means it was re-created.
		s.registry.Revive(c.Topic)
	}
	s.emit(ctx, rec)
}

func (s *Service) handlePartial(ctx context.Context, c topic.Classification, msg *queue.Message) {
	s.mu.Lock()
	reading, err := s.reconciler.Ingest(c.SensorKind, c.NodeID, c.Field, msg.Payload)
	pending := s.reconciler.Pending(c.SensorKind)
	s.mu.Unlock()

	metrics.PartialsPending.WithLabelValues(string(c.SensorKind)).Set(float64(pending))

	if err != nil {
		s.dropped(c, err)
		return
	}
	if reading != nil {
		s.emit(ctx, reading)
	}
}

func (s *Service) handleStatus(ctx context.Context, c topic.Classification, msg *queue.Message) {
	lastUpdate, err := topic.ParseLastUpdate(msg.Payload)
	if err != nil {
		s.dropped(c, err)
		return
	}

	s.emit(ctx, &domain.StatusUpdate{
		Meta:       domain.NewMeta(c.Topic),
		NodeID:     c.NodeID,
		LastUpdate: lastUpdate,
	})
}

// emit appends a record to the log, archives it, and notifies alerts.
func (s *Service) emit(ctx context.Context, rec domain.Record) {
	s.log.Append(rec)

	if s.archive != nil {
		if err := s.archive.Save(ctx, rec); err != nil {
			s.logger.Warn("failed to archive record", "kind", rec.Kind(), "error", err)
		}
	}

	if alert, ok := rec.(*domain.AlertFired); ok && s.notifier != nil {
		s.notifier.NotifyAlert(ctx, alert)
	}

	s.logger.Debug("record emitted",
		"kind", rec.Kind(),
		"topic", rec.Metadata().SourceTopic,
		"node_id", domain.NodeOf(rec),
	)
}

func (s *Service) dropped(c topic.Classification, err error) {
	metrics.DecodeErrorsTotal.WithLabelValues(string(c.Route)).Inc()

	level := slog.LevelDebug
	if errors.Is(err, reconcile.ErrUnknownField) {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "dropping message", "topic", c.Topic, "route", c.Route, "error", err)
}

// Pending reports open partial accumulators for a sensor kind.
func (s *Service) Pending(kind domain.SensorKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reconciler.Pending(kind)
}

// Stop gracefully stops the processor service. Partial readings are
// discarded and nothing is published.
func (s *Service) Stop() error {
	s.logger.Info("stopping processor service")
	err := s.consumer.Close()

	s.mu.Lock()
	s.reconciler.Reset()
	s.mu.Unlock()

	for _, kind := range []domain.SensorKind{domain.SensorLight, domain.SensorUltrasonic} {
		metrics.PartialsPending.WithLabelValues(string(kind)).Set(0)
	}
	return err
}
