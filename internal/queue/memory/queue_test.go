package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sensorwatch-go/internal/queue"
)

var (
	_ queue.Producer = (*Queue)(nil)
	_ queue.Consumer = (*Queue)(nil)
)

func TestQueue_LoopbackPreservesOrder(t *testing.T) {
	q := NewQueue(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := []string{"a", "b", "c"}
	for _, topic := range topics {
		if err := q.Publish(ctx, &queue.Message{Topic: topic, Retain: true, QoS: queue.ExactlyOnce}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	var mu sync.Mutex
	var got []*queue.Message
	done := make(chan struct{})
	go func() {
		_ = q.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
			if len(got) == len(topics) {
				close(done)
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, msg := range got {
		if msg.Topic != topics[i] {
			t.Errorf("message %d topic = %s, want %s", i, msg.Topic, topics[i])
		}
		if !msg.Retain || msg.QoS != queue.ExactlyOnce {
			t.Errorf("message %d lost retain/qos: %+v", i, msg)
		}
		if msg.ReceivedAt.IsZero() {
			t.Errorf("message %d has no ReceivedAt", i)
		}
	}
}

func TestQueue_PublishCopiesPayload(t *testing.T) {
	q := NewQueue(1)
	payload := []byte("42")
	_ = q.Inject(context.Background(), "status/n1/last_update", payload)
	payload[0] = 'X'

	msg := <-q.messages
	if string(msg.Payload) != "42" {
		t.Errorf("Payload = %q, want copy taken at publish", msg.Payload)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	_ = q.Close()

	err := q.Publish(context.Background(), &queue.Message{Topic: "a"})
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish() error = %v, want ErrQueueClosed", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(1)
	_ = q.Publish(context.Background(), &queue.Message{Topic: "fills the buffer"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, &queue.Message{Topic: "blocked"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want deadline exceeded", err)
	}
}
