package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"

	"sensorwatch-go/internal/queue"
)

var (
	_ queue.Producer = (*Producer)(nil)
	_ queue.Consumer = (*Consumer)(nil)
)

func TestMessageRoundTrip(t *testing.T) {
	in := &queue.Message{
		Topic:   "params/event/lamp",
		Payload: []byte(`{"msg_type":"event"}`),
		Retain:  true,
		QoS:     queue.ExactlyOnce,
		Headers: map[string]string{"origin": "api"},
	}

	out := fromKafka(toKafka(in))

	if out.Topic != in.Topic {
		t.Errorf("Topic = %s, want %s", out.Topic, in.Topic)
	}
	if string(out.Payload) != string(in.Payload) {
		t.Errorf("Payload = %s", out.Payload)
	}
	if !out.Retain || out.QoS != queue.ExactlyOnce {
		t.Errorf("Retain/QoS = %v/%v", out.Retain, out.QoS)
	}
	if out.Headers["origin"] != "api" {
		t.Errorf("custom header lost: %v", out.Headers)
	}
	if out.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set on receipt")
	}
}

func TestFromKafka(t *testing.T) {
	tests := []struct {
		name       string
		msg        kafka.Message
		wantTopic  string
		wantRetain bool
		wantQoS    queue.AckLevel
	}{
		{
			name:      "key is the topic",
			msg:       kafka.Message{Key: []byte("status/n1/last_update"), Value: []byte("1")},
			wantTopic: "status/n1/last_update",
		},
		{
			name: "topic header overrides key",
			msg: kafka.Message{
				Key:     []byte("partition-key"),
				Headers: []kafka.Header{{Key: HeaderTopic, Value: []byte("sensors/distance/n2/estado")}},
			},
			wantTopic: "sensors/distance/n2/estado",
		},
		{
			name: "malformed headers are ignored",
			msg: kafka.Message{
				Key: []byte("a"),
				Headers: []kafka.Header{
					{Key: HeaderRetain, Value: []byte("maybe")},
					{Key: HeaderQoS, Value: []byte("7")},
				},
			},
			wantTopic: "a",
		},
		{
			name: "retained qos 1",
			msg: kafka.Message{
				Key: []byte("a"),
				Headers: []kafka.Header{
					{Key: HeaderRetain, Value: []byte("true")},
					{Key: HeaderQoS, Value: []byte("1")},
				},
			},
			wantTopic:  "a",
			wantRetain: true,
			wantQoS:    queue.AtLeastOnce,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromKafka(tt.msg)
			if got.Topic != tt.wantTopic {
				t.Errorf("Topic = %s, want %s", got.Topic, tt.wantTopic)
			}
			if got.Retain != tt.wantRetain {
				t.Errorf("Retain = %v, want %v", got.Retain, tt.wantRetain)
			}
			if got.QoS != tt.wantQoS {
				t.Errorf("QoS = %v, want %v", got.QoS, tt.wantQoS)
			}
		})
	}
}
