package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDecode is wrapped by every payload decoding failure.
var ErrDecode = errors.New("failed to decode payload")

// eventWire is the event definition object as published on the bus.
type eventWire struct {
	MsgType string `json:"msg_type"`
	EventSpec
}

// alertWire is the alert object nodes publish when an event triggers.
type alertWire struct {
	NodeID    string    `json:"node_id"`
	MsgType   string    `json:"msg_type"`
	Timestamp float64   `json:"timestamp"`
	Event     EventSpec `json:"event"`
}

// Payload encodes the spec as the retained payload of an event topic.
func (s EventSpec) Payload() ([]byte, error) {
	data, err := json.Marshal(eventWire{MsgType: string(KindEventDefinition), EventSpec: s})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event spec: %w", err)
	}
	return data, nil
}

// DecodeEventPayload decodes a non-empty payload seen on an event topic.
// Bridges also publish alert objects below params/event/, so the msg_type
// field decides between an AlertFired and an EventDefinition.
func DecodeEventPayload(topic string, payload []byte) (Record, error) {
	data, err := unwrapJSON(payload)
	if err != nil {
		return nil, err
	}

	var head struct {
		MsgType string `json:"msg_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch Kind(head.MsgType) {
	case KindAlertFired:
		return decodeAlert(topic, data)
	case KindEventDefinition, "":
	default:
		return nil, fmt.Errorf("%w: msg_type %q on event topic", ErrDecode, head.MsgType)
	}

	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	// Only a publishable definition may stand for its topic in the registry.
	if err := wire.EventSpec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &EventDefinition{
		Meta:      NewMeta(topic),
		EventSpec: wire.EventSpec,
	}, nil
}

// DecodeAlert decodes the payload of a params/event/alert/ topic.
func DecodeAlert(topic string, payload []byte) (*AlertFired, error) {
	data, err := unwrapJSON(payload)
	if err != nil {
		return nil, err
	}
	return decodeAlert(topic, data)
}

func decodeAlert(topic string, data []byte) (*AlertFired, error) {
	var wire alertWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	alert := &AlertFired{
		Meta:      NewMeta(topic),
		NodeID:    wire.NodeID,
		Event:     wire.Event,
		Timestamp: int64(wire.Timestamp),
	}
	if alert.Timestamp == 0 {
		alert.Timestamp = alert.ReceivedAt.Unix()
	}
	return alert, nil
}

// unwrapJSON returns the JSON object in payload. Some publishers encode the
// object twice, producing a JSON string that itself holds the object.
// Anything but an object, null included, is rejected.
func unwrapJSON(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}
	return trimmed, nil
}

// Envelope is the tagged JSON form of a record.
type Envelope struct {
	Kind       Kind      `json:"kind"`
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Topic      string    `json:"topic"`
	NodeID     string    `json:"node_id,omitempty"`
	Data       any       `json:"data"`
}

// NewEnvelope wraps a record for serialization.
func NewEnvelope(rec Record) Envelope {
	meta := rec.Metadata()
	return Envelope{
		Kind:       rec.Kind(),
		ID:         meta.ID,
		ReceivedAt: meta.ReceivedAt,
		Topic:      meta.SourceTopic,
		NodeID:     NodeOf(rec),
		Data:       rec,
	}
}

// RecordFilter narrows record listings.
type RecordFilter struct {
	Kind   Kind
	NodeID string
	Limit  int
	Offset int
}

// Matches reports whether the envelope passes the kind and node filters.
func (f RecordFilter) Matches(env Envelope) bool {
	if f.Kind != "" && env.Kind != f.Kind {
		return false
	}
	if f.NodeID != "" && env.NodeID != f.NodeID {
		return false
	}
	return true
}
