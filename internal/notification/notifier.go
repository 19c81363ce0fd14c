// Package notification provides alert notification functionality.
// The stub implementation logs notifications; delivery channels plug in
// behind the Notifier interface.
package notification

import (
	"context"
	"log/slog"
	"time"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
)

// NotificationPayload represents the data sent when a node reports an alert.
type NotificationPayload struct {
	RecordID     string    `json:"record_id"`
	NodeID       string    `json:"node_id"`
	SensorType   string    `json:"sensor_type"`
	TriggerType  string    `json:"trigger_type"`
	Threshold    float64   `json:"trigger_threshold"`
	AlertMessage string    `json:"alert_message"`
	FiredAt      time.Time `json:"fired_at"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier defines the interface for sending alert notifications.
type Notifier interface {
	// NotifyAlert sends a notification for an alert fired by a node.
	NotifyAlert(ctx context.Context, alert *domain.AlertFired)
}

// StubNotifier is a no-op implementation that logs notifications.
type StubNotifier struct {
	logger *slog.Logger
}

// NewStubNotifier creates a new stub notifier.
func NewStubNotifier(logger *slog.Logger) *StubNotifier {
	return &StubNotifier{
		logger: logger,
	}
}

// NotifyAlert logs a notification for a fired alert.
func (n *StubNotifier) NotifyAlert(ctx context.Context, alert *domain.AlertFired) {
	payload := BuildPayload(alert)

	n.logger.Info("STUB: would send alert notification",
		"recordID", payload.RecordID,
		"nodeID", payload.NodeID,
		"sensorType", payload.SensorType,
		"triggerType", payload.TriggerType,
		"threshold", payload.Threshold,
		"alertMessage", payload.AlertMessage,
	)

	// Track notification metrics
	metrics.NotificationsSentTotal.WithLabelValues(alert.NodeID, "success").Inc()

	// Track how long after the node fired the alert we dispatched it
	if !payload.FiredAt.IsZero() {
		metrics.AlertAge.Observe(time.Since(payload.FiredAt).Seconds())
	}
}

// BuildPayload creates a notification payload from an alert.
func BuildPayload(alert *domain.AlertFired) *NotificationPayload {
	var firedAt time.Time
	if alert.Timestamp > 0 {
		firedAt = time.Unix(alert.Timestamp, 0).UTC()
	}

	return &NotificationPayload{
		RecordID:     alert.ID,
		NodeID:       alert.NodeID,
		SensorType:   string(alert.Event.SensorKind),
		TriggerType:  string(alert.Event.TriggerType),
		Threshold:    alert.Event.TriggerThreshold,
		AlertMessage: alert.Event.AlertMessage,
		FiredAt:      firedAt,
		Timestamp:    time.Now().UTC(),
	}
}
