package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// EventTopicPrefix is the topic namespace holding event definitions.
const EventTopicPrefix = "params/event/"

// MaxAlertMessageLength is the longest alert message a node can display.
const MaxAlertMessageLength = 20

// SensorKind identifies the type of sensor on a node.
type SensorKind string

const (
	SensorLight      SensorKind = "light"
	SensorUltrasonic SensorKind = "ultrasonic"
)

// IsValid returns true if the sensor kind is known.
func (k SensorKind) IsValid() bool {
	switch k {
	case SensorLight, SensorUltrasonic:
		return true
	default:
		return false
	}
}

// Estado is the qualitative state a sensor reports next to its measurement.
type Estado string

const (
	EstadoBrillante Estado = "Brillante"
	EstadoOscuro    Estado = "Oscuro"
	EstadoMedio     Estado = "Medio"
	EstadoCerca     Estado = "Cerca"
	EstadoLejos     Estado = "Lejos"
)

// ValidEstado reports whether the estado belongs to the kind's vocabulary.
func (k SensorKind) ValidEstado(e Estado) bool {
	switch k {
	case SensorLight:
		return e == EstadoBrillante || e == EstadoOscuro || e == EstadoMedio
	case SensorUltrasonic:
		return e == EstadoCerca || e == EstadoLejos || e == EstadoMedio
	default:
		return false
	}
}

// TriggerType is the comparison an event applies to its threshold.
type TriggerType string

const (
	TriggerAbove TriggerType = "above"
	TriggerBelow TriggerType = "below"
	TriggerEqual TriggerType = "equal"
)

// IsValid returns true if the trigger type is known.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerAbove, TriggerBelow, TriggerEqual:
		return true
	default:
		return false
	}
}

// EventSpec is the content of an event definition as published on the bus.
type EventSpec struct {
	SensorKind        SensorKind  `json:"sensor_type"`
	TriggerThreshold  float64     `json:"trigger_threshold"`
	TriggerType       TriggerType `json:"trigger_type"`
	IsActive          bool        `json:"is_active"`
	AlertMessage      string      `json:"alert_message"`
	TargetDevice      string      `json:"target_device,omitempty"`
	TargetDeviceValue float64     `json:"target_device_value,omitempty"`
}

// Errors for event definitions and commands on them.
var (
	ErrEmptyEventName      = errors.New("event name is required")
	ErrDuplicateEventName  = errors.New("an event with this name already exists")
	ErrEventNotFound       = errors.New("event not found")
	ErrInvalidSensorKind   = errors.New("sensor_type must be 'light' or 'ultrasonic'")
	ErrInvalidTriggerType  = errors.New("trigger_type must be 'above', 'below', or 'equal'")
	ErrAlertMessageTooLong = errors.New("alert_message must be at most 20 characters")
)

// ValidationError is returned synchronously when a command is rejected
// before anything is published.
type ValidationError struct {
	Err error
}

// NewValidationError wraps err as a ValidationError.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the spec can be published.
func (s *EventSpec) Validate() error {
	if !s.SensorKind.IsValid() {
		return NewValidationError(ErrInvalidSensorKind)
	}
	if !s.TriggerType.IsValid() {
		return NewValidationError(ErrInvalidTriggerType)
	}
	if utf8.RuneCountInString(s.AlertMessage) > MaxAlertMessageLength {
		return NewValidationError(ErrAlertMessageTooLong)
	}
	return nil
}

// Normalize clamps the threshold to zero, as nodes only compare against
// non-negative thresholds.
func (s *EventSpec) Normalize() {
	if s.TriggerThreshold < 0 {
		s.TriggerThreshold = 0
	}
}

// NormalizeTopic maps an event name or topic to its canonical topic.
// Canonical topics define event identity for dedup and deletion.
func NormalizeTopic(topic string) string {
	if strings.Contains(topic, EventTopicPrefix) {
		return topic
	}
	return EventTopicPrefix + topic
}

// EventChanges is a partial update to an EventSpec. Nil fields are kept.
type EventChanges struct {
	SensorKind        *SensorKind  `json:"sensor_type,omitempty"`
	TriggerThreshold  *float64     `json:"trigger_threshold,omitempty"`
	TriggerType       *TriggerType `json:"trigger_type,omitempty"`
	IsActive          *bool        `json:"is_active,omitempty"`
	AlertMessage      *string      `json:"alert_message,omitempty"`
	TargetDevice      *string      `json:"target_device,omitempty"`
	TargetDeviceValue *float64     `json:"target_device_value,omitempty"`
}

// ApplyTo merges the changes over spec.
func (c *EventChanges) ApplyTo(spec *EventSpec) {
	if c.SensorKind != nil {
		spec.SensorKind = *c.SensorKind
	}
	if c.TriggerThreshold != nil {
		spec.TriggerThreshold = *c.TriggerThreshold
	}
	if c.TriggerType != nil {
		spec.TriggerType = *c.TriggerType
	}
	if c.IsActive != nil {
		spec.IsActive = *c.IsActive
	}
	if c.AlertMessage != nil {
		spec.AlertMessage = *c.AlertMessage
	}
	if c.TargetDevice != nil {
		spec.TargetDevice = *c.TargetDevice
	}
	if c.TargetDeviceValue != nil {
		spec.TargetDeviceValue = *c.TargetDeviceValue
	}
}

// CreateEventRequest is the input for creating a new event definition.
type CreateEventRequest struct {
	Name string `json:"name"`
	EventSpec
}
