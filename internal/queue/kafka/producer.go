// Package kafka provides Kafka-based implementations of the queue interfaces.
// Kafka is used in bridge mode: a connector copies broker publications into
// one Kafka topic, keyed by the bus topic.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/metrics"
	"sensorwatch-go/internal/queue"
)

// Header names carried on bridged messages.
const (
	HeaderTopic  = "topic"
	HeaderRetain = "retain"
	HeaderQoS    = "qos"
)

// Producer implements queue.Producer using Kafka.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg *config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // Same bus topic, same partition
		BatchTimeout: 10 * time.Millisecond,
		// Event writes ask for exactly-once delivery; wait for every replica.
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{
		writer: writer,
	}
}

// Publish sends a message to Kafka.
func (p *Producer) Publish(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	if err := p.writer.WriteMessages(ctx, toKafka(msg)); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
	return nil
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func toKafka(msg *queue.Message) kafka.Message {
	kafkaMsg := kafka.Message{
		Key:   []byte(msg.Topic),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: HeaderRetain, Value: []byte(strconv.FormatBool(msg.Retain))},
			{Key: HeaderQoS, Value: []byte(strconv.Itoa(int(msg.QoS)))},
		},
	}

	for k, v := range msg.Headers {
		if k == HeaderRetain || k == HeaderQoS {
			continue
		}
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	return kafkaMsg
}

func fromKafka(msg kafka.Message) *queue.Message {
	queueMsg := &queue.Message{
		Topic:      string(msg.Key),
		Payload:    msg.Value,
		Headers:    make(map[string]string, len(msg.Headers)),
		ReceivedAt: time.Now().UTC(),
	}

	for _, h := range msg.Headers {
		queueMsg.Headers[h.Key] = string(h.Value)
	}

	if topic, ok := queueMsg.Headers[HeaderTopic]; ok && topic != "" {
		queueMsg.Topic = topic
	}
	if retain, err := strconv.ParseBool(queueMsg.Headers[HeaderRetain]); err == nil {
		queueMsg.Retain = retain
	}
	if qos, err := strconv.Atoi(queueMsg.Headers[HeaderQoS]); err == nil && qos >= 0 && qos <= 2 {
		queueMsg.QoS = queue.AckLevel(qos)
	}

	return queueMsg
}
