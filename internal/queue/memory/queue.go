// Package memory provides an in-memory implementation of the queue interfaces.
// This is useful for testing and development without a broker.
package memory

import (
	"context"
	"sync"
	"time"

	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/queue"
)

// Queue is an in-memory implementation of both Producer and Consumer interfaces.
// It behaves like a loopback broker: every published message is delivered
// back to the consumer, so commands echo through the normal inbound path.
// This implementation is safe for concurrent use.
type Queue struct {
	messages chan *queue.Message
	closed   bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewQueue creates a new in-memory queue with the specified buffer size.
// The buffer size determines how many messages can be queued before
// Publish blocks (or fails if the context is canceled).
func NewQueue(bufferSize int) *Queue {
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
	}
}

// Publish sends a message to the in-memory queue.
// This method blocks if the queue is full until space is available
// or the context is canceled.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Deliver a copy so the publisher may reuse its message.
	delivered := *msg
	delivered.Payload = append([]byte(nil), msg.Payload...)

	select {
	case q.messages <- &delivered:
		metrics.QueueDepth.Set(float64(len(q.messages)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inject delivers a message as if it arrived from a remote publisher.
// Tests and the development simulator use it to play sensor traffic.
func (q *Queue) Inject(ctx context.Context, topic string, payload []byte) error {
	return q.Publish(ctx, &queue.Message{Topic: topic, Payload: payload})
}

// Start begins consuming messages and calls the handler for each one.
// This blocks until the context is canceled or the queue is closed.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				// Channel closed
				return nil
			}
			metrics.QueueDepth.Set(float64(len(q.messages)))
			if msg.ReceivedAt.IsZero() {
				msg.ReceivedAt = time.Now().UTC()
			}
			// Handler errors are the handler's to report; the loop keeps going.
			_ = handler(ctx, msg)
		}
	}
}

// Close shuts down the queue, stopping all consumers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.messages)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of messages in the queue.
// Useful for testing to verify queue state.
func (q *Queue) Len() int {
	return len(q.messages)
}
