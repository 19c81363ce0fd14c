// Package queue defines interfaces for the publish/subscribe bus.
// This abstraction allows swapping implementations (MQTT, Kafka, in-memory)
// without changing business logic.
package queue

import (
	"context"
	"time"
)

// AckLevel is the delivery guarantee requested for a publish.
type AckLevel byte

const (
	// AtMostOnce delivers with no acknowledgement.
	AtMostOnce AckLevel = 0
	// AtLeastOnce may deliver duplicates.
	AtLeastOnce AckLevel = 1
	// ExactlyOnce delivers once. Event writes always use it.
	ExactlyOnce AckLevel = 2
)

// Message is one publication on the bus.
type Message struct {
	// Topic is the bus topic, e.g. sensors/brightness/node1/lux.
	Topic string

	// Payload is the raw message body. An empty payload on an event
	// topic is a delete.
	Payload []byte

	// Retain asks the broker to keep the message as the topic's current value.
	Retain bool

	// QoS is the requested delivery guarantee.
	QoS AckLevel

	// Headers contains optional transport metadata.
	Headers map[string]string

	// ReceivedAt is set by consumers when the message arrives.
	ReceivedAt time.Time
}

// Producer defines the interface for publishing messages to the bus.
// Implementations must be safe for concurrent use.
type Producer interface {
	// Publish hands a message to the transport. It returns once the
	// transport accepted the request; it does not wait for delivery.
	Publish(ctx context.Context, msg *Message) error

	// Close releases any resources held by the producer.
	Close() error
}

// MessageHandler is a callback function for processing consumed messages.
// Return an error to indicate processing failure (implementation may retry).
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer defines the interface for consuming messages from the bus.
type Consumer interface {
	// Start begins consuming messages and calls the handler for each one,
	// in arrival order, from a single goroutine.
	// This is a blocking call that runs until the context is canceled
	// or an unrecoverable error occurs.
	Start(ctx context.Context, handler MessageHandler) error

	// Close stops consuming and releases any resources.
	Close() error
}
