// Package command turns user actions on the event registry into bus
// publications. It never changes local state directly except for the
// tombstone added on delete: the echo of every write comes back through
// the processor like any other message.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/queue"
)

// ErrPublishFailed is returned when the transport refused a command.
var ErrPublishFailed = errors.New("failed to publish command")

// Operation names used in logs and metrics.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpToggle = "toggle"
	OpDelete = "delete"
)

// Registry is the view of live events the emitter validates against.
type Registry interface {
	// Lookup returns the live entry for a topic or event name.
	Lookup(topic string) (domain.RegistryEntry, bool)

	// MarkDeleted hides a topic from the registry.
	MarkDeleted(topic string)
}

// Emitter publishes event definitions and deletes.
// It is safe for concurrent use if the producer and registry are.
type Emitter struct {
	producer queue.Producer
	registry Registry
	logger   *slog.Logger
}

// NewEmitter creates a new command emitter.
func NewEmitter(producer queue.Producer, registry Registry, logger *slog.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		registry: registry,
		logger:   logger,
	}
}

// Create publishes a new event definition under params/event/<name> and
// returns the topic. Negative thresholds are clamped to zero. Nothing is
// published when validation fails.
func (e *Emitter) Create(ctx context.Context, spec domain.EventSpec, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", e.reject(OpCreate, domain.NewValidationError(domain.ErrEmptyEventName))
	}

	topic := domain.NormalizeTopic(name)
	if _, exists := e.registry.Lookup(topic); exists {
		return "", e.reject(OpCreate, domain.NewValidationError(domain.ErrDuplicateEventName))
	}

	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return "", e.reject(OpCreate, err)
	}

	if err := e.publishSpec(ctx, OpCreate, topic, spec); err != nil {
		return "", err
	}

	e.logger.Info("event created", "topic", topic, "sensor_type", spec.SensorKind)
	return topic, nil
}

// Update merges changes over the live definition for topic and
// republishes the full definition.
func (e *Emitter) Update(ctx context.Context, topic string, changes domain.EventChanges) (domain.EventSpec, error) {
	return e.update(ctx, OpUpdate, topic, changes.ApplyTo)
}

// ToggleActive flips the is_active flag of the live definition for topic.
func (e *Emitter) ToggleActive(ctx context.Context, topic string) (domain.EventSpec, error) {
	return e.update(ctx, OpToggle, topic, func(spec *domain.EventSpec) {
		spec.IsActive = !spec.IsActive
	})
}

func (e *Emitter) update(ctx context.Context, op, topic string, apply func(*domain.EventSpec)) (domain.EventSpec, error) {
	topic = domain.NormalizeTopic(topic)

	entry, ok := e.registry.Lookup(topic)
	if !ok {
		return domain.EventSpec{}, e.reject(op, domain.ErrEventNotFound)
	}

	spec := entry.Definition.EventSpec
	apply(&spec)
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return domain.EventSpec{}, e.reject(op, err)
	}

	if err := e.publishSpec(ctx, op, topic, spec); err != nil {
		return domain.EventSpec{}, err
	}

	e.logger.Info("event updated", "operation", op, "topic", topic, "is_active", spec.IsActive)
	return spec, nil
}

// Delete publishes an empty retained payload to topic, which clears the
// broker's retained definition, and hides the topic locally once the
// transport accepted the request.
func (e *Emitter) Delete(ctx context.Context, topic string) error {
	topic = domain.NormalizeTopic(topic)

	if err := e.publish(ctx, OpDelete, topic, []byte{}); err != nil {
		return err
	}
	e.registry.MarkDeleted(topic)

	e.logger.Info("event deleted", "topic", topic)
	return nil
}

func (e *Emitter) publishSpec(ctx context.Context, op, topic string, spec domain.EventSpec) error {
	payload, err := spec.Payload()
	if err != nil {
		metrics.CommandsPublishedTotal.WithLabelValues(op, "failure").Inc()
		return err
	}
	return e.publish(ctx, op, topic, payload)
}

// publish writes a retained, exactly-once message. Event writes are
// retained so nodes and late subscribers see the current definition.
func (e *Emitter) publish(ctx context.Context, op, topic string, payload []byte) error {
	msg := &queue.Message{
		Topic:   topic,
		Payload: payload,
		Retain:  true,
		QoS:     queue.ExactlyOnce,
	}

	start := time.Now()
	if err := e.producer.Publish(ctx, msg); err != nil {
		metrics.CommandsPublishedTotal.WithLabelValues(op, "failure").Inc()
		e.logger.Error("failed to publish command", "operation", op, "topic", topic, "error", err)
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
	metrics.CommandsPublishedTotal.WithLabelValues(op, "success").Inc()

	return nil
}

func (e *Emitter) reject(op string, err error) error {
	metrics.CommandsPublishedTotal.WithLabelValues(op, "rejected").Inc()
	e.logger.Debug("command rejected", "operation", op, "error", err)
	return err
}
