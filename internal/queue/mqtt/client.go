// Package mqtt provides an MQTT implementation of the queue interfaces
// using the Eclipse Paho client. One Client is both the producer and the
// consumer, mirroring a single broker connection.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/queue"
)

// ErrClosed is returned when publishing on a closed client.
var ErrClosed = errors.New("mqtt client is closed")

// disconnectQuiesce is how long Close waits for in-flight work, in ms.
const disconnectQuiesce = 250

// Client implements queue.Producer and queue.Consumer over one broker
// connection. Paho callbacks are funneled into an ordered channel that
// Start drains, so the handler always runs on a single goroutine.
type Client struct {
	client paho.Client
	cfg    *config.MQTTConfig
	logger *slog.Logger

	inbound chan *queue.Message
	done    chan struct{}

	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

// New creates a client for the configured broker. It does not connect.
func New(cfg *config.MQTTConfig, bufferSize int, logger *slog.Logger) *Client {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		inbound: make(chan *queue.Message, bufferSize),
		done:    make(chan struct{}),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if cfg.CleanSession != nil {
		opts.SetCleanSession(*cfg.CleanSession)
	}

	c.client = paho.NewClient(opts)
	return c
}

// Connect opens the broker connection. Subscriptions are (re)established
// by the on-connect handler, so they survive automatic reconnects.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to mqtt broker", "broker", c.cfg.Broker, "client_id", c.cfg.ClientID)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return nil
}

func (c *Client) onConnect(client paho.Client) {
	c.logger.Info("connected to mqtt broker", "subscribe", c.cfg.Subscribe)

	token := client.Subscribe(c.cfg.Subscribe, c.cfg.QoS, c.onMessage)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("failed to subscribe", "filter", c.cfg.Subscribe, "error", err)
		}
	}()
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("lost connection to mqtt broker", "error", err)
}

// onMessage runs on a paho goroutine. It blocks when the buffer is full,
// which applies backpressure to the broker connection.
func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	msg := &queue.Message{
		Topic:      m.Topic(),
		Payload:    append([]byte(nil), m.Payload()...),
		Retain:     m.Retained(),
		QoS:        queue.AckLevel(m.Qos()),
		ReceivedAt: time.Now().UTC(),
	}

	select {
	case c.inbound <- msg:
		metrics.QueueDepth.Set(float64(len(c.inbound)))
	case <-c.done:
	}
}

// Start delivers inbound messages to handler in arrival order.
func (c *Client) Start(ctx context.Context, handler queue.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg := <-c.inbound:
			metrics.QueueDepth.Set(float64(len(c.inbound)))
			if err := handler(ctx, msg); err != nil {
				c.logger.Error("failed to process message", "topic", msg.Topic, "error", err)
			}
		}
	}
}

// Publish hands a message to the broker connection. It returns once paho
// accepted the request; delivery failures are logged when they surface.
func (c *Client) Publish(ctx context.Context, msg *queue.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	token := c.client.Publish(msg.Topic, byte(msg.QoS), msg.Retain, msg.Payload)

	// Paho completes the token immediately when it refuses the request,
	// e.g. while disconnected.
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
		}
	default:
		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				c.logger.Error("publish failed", "topic", msg.Topic, "error", err)
			}
		}()
	}

	metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
	return nil
}

// Close disconnects from the broker and stops Start.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		if c.client.IsConnected() {
			c.client.Disconnect(disconnectQuiesce)
		}
	})
	return nil
}
