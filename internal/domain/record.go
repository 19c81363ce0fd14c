// Package domain contains the typed records produced from the sensor bus
// and the event definitions that configure alerting on the nodes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the variant of a Record.
type Kind string

const (
	KindSensorReading   Kind = "sensor_data"
	KindEventDefinition Kind = "event"
	KindAlertFired      Kind = "alert"
	KindStatusUpdate    Kind = "status"
)

// IsValid returns true if the kind is a known record variant.
func (k Kind) IsValid() bool {
	switch k {
	case KindSensorReading, KindEventDefinition, KindAlertFired, KindStatusUpdate:
		return true
	default:
		return false
	}
}

// Meta is carried by every record. None of it comes from message content.
type Meta struct {
	// ID is a process-local identifier used only for log identity.
	ID string `json:"id"`

	// ReceivedAt is the wall-clock capture time of the record.
	ReceivedAt time.Time `json:"received_at"`

	// SourceTopic is the raw topic the record was published on.
	SourceTopic string `json:"topic"`
}

// NewMeta stamps a fresh identity and capture time for a record seen on topic.
func NewMeta(topic string) Meta {
	return Meta{
		ID:          uuid.New().String(),
		ReceivedAt:  time.Now().UTC(),
		SourceTopic: topic,
	}
}

// Metadata returns the record metadata.
func (m Meta) Metadata() Meta {
	return m
}

// Record is a closed sum type over the four record variants below.
// Consumers switch on the concrete type; the unexported marker keeps
// other packages from adding variants.
type Record interface {
	Kind() Kind
	Metadata() Meta
	record()
}

// SensorReading is a complete reading assembled from per-field publications.
// Exactly one of Light or Ultrasonic is set, matching SensorKind.
type SensorReading struct {
	Meta `json:"-"`

	NodeID     string          `json:"node_id"`
	SensorKind SensorKind      `json:"sensor_type"`
	Light      *LightData      `json:"light,omitempty"`
	Ultrasonic *UltrasonicData `json:"ultrasonic,omitempty"`
}

// LightData holds the fields of a light sensor reading.
type LightData struct {
	Lux    float64 `json:"lux"`
	ALS    int64   `json:"als"`
	Estado Estado  `json:"estado"`
}

// UltrasonicData holds the fields of an ultrasonic sensor reading.
type UltrasonicData struct {
	DistanceCM float64 `json:"distance_cm"`
	Estado     Estado  `json:"estado"`
}

// EventDefinition is an event configuration seen on params/event/<name>.
type EventDefinition struct {
	Meta `json:"-"`
	EventSpec
}

// AlertFired is reported by a node when one of its events triggered.
type AlertFired struct {
	Meta `json:"-"`

	NodeID    string    `json:"node_id"`
	Event     EventSpec `json:"event"`
	Timestamp int64     `json:"timestamp"`
}

// StatusUpdate carries the last time a node reported in.
type StatusUpdate struct {
	Meta `json:"-"`

	NodeID string `json:"node_id"`

	// LastUpdate is unix seconds or unix milliseconds, as sent by the node.
	LastUpdate int64 `json:"last_update"`
}

// millisThreshold separates unix seconds from unix milliseconds.
// 1e12 milliseconds is September 2001; 1e12 seconds is far in the future.
const millisThreshold = 1_000_000_000_000

// Time interprets LastUpdate as seconds or milliseconds.
func (s *StatusUpdate) Time() time.Time {
	if s.LastUpdate >= millisThreshold {
		return time.UnixMilli(s.LastUpdate).UTC()
	}
	return time.Unix(s.LastUpdate, 0).UTC()
}

func (*SensorReading) Kind() Kind   { return KindSensorReading }
func (*EventDefinition) Kind() Kind { return KindEventDefinition }
func (*AlertFired) Kind() Kind      { return KindAlertFired }
func (*StatusUpdate) Kind() Kind    { return KindStatusUpdate }

func (*SensorReading) record()   {}
func (*EventDefinition) record() {}
func (*AlertFired) record()      {}
func (*StatusUpdate) record()    {}

// NodeOf returns the node a record belongs to, or "" for event definitions.
func NodeOf(rec Record) string {
	switch r := rec.(type) {
	case *SensorReading:
		return r.NodeID
	case *AlertFired:
		return r.NodeID
	case *StatusUpdate:
		return r.NodeID
	case *EventDefinition:
		return ""
	default:
		return ""
	}
}
