package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/queue"
)

var (
	_ queue.Producer = (*Client)(nil)
	_ queue.Consumer = (*Client)(nil)
)

// fakeMessage implements paho.Message.
type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
	qos      byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return m.qos }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestClient() *Client {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Default().MQTT
	return New(&cfg, 10, logger)
}

func TestClient_CallbacksReachHandlerInOrder(t *testing.T) {
	c := newTestClient()
	defer c.Close()

	c.onMessage(nil, &fakeMessage{topic: "sensors/brightness/n1/lux", payload: []byte("1.5")})
	c.onMessage(nil, &fakeMessage{topic: "params/event/lamp", payload: []byte("{}"), retained: true, qos: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *queue.Message, 2)
	go func() {
		_ = c.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
			got <- msg
			return nil
		})
	}()

	first := receive(t, got)
	second := receive(t, got)

	if first.Topic != "sensors/brightness/n1/lux" || string(first.Payload) != "1.5" {
		t.Errorf("first = %+v", first)
	}
	if second.Topic != "params/event/lamp" || !second.Retain || second.QoS != queue.ExactlyOnce {
		t.Errorf("second = %+v", second)
	}
	if first.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set")
	}
}

func TestClient_CloseStopsStart(t *testing.T) {
	c := newTestClient()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background(), func(context.Context, *queue.Message) error { return nil })
	}()

	_ = c.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Close")
	}

	if err := c.Publish(context.Background(), &queue.Message{Topic: "a"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
}

func TestClient_PublishWhileDisconnected(t *testing.T) {
	c := newTestClient()
	defer c.Close()

	err := c.Publish(context.Background(), &queue.Message{Topic: "params/event/a", QoS: queue.ExactlyOnce, Retain: true})
	if err == nil {
		t.Error("Publish() on a never-connected client should fail")
	}
}

func receive(t *testing.T, ch <-chan *queue.Message) *queue.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}
