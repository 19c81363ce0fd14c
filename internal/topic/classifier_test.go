package topic

import (
	"errors"
	"testing"

	"sensorwatch-go/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		topic string
		want  Classification
	}{
		{
			topic: "params/event/alert/node_03",
			want:  Classification{Route: RouteAlert, Topic: "params/event/alert/node_03"},
		},
		{
			topic: "params/event/lights_on",
			want:  Classification{Route: RouteEvent, Topic: "params/event/lights_on"},
		},
		{
			// The bridge's plural "alerts" namespace is not the alert marker.
			topic: "params/event/alerts/node_03_light",
			want:  Classification{Route: RouteEvent, Topic: "params/event/alerts/node_03_light"},
		},
		{
			topic: "sensors/brightness/n1/als",
			want: Classification{
				Route: RoutePartial, Topic: "sensors/brightness/n1/als",
				SensorKind: domain.SensorLight, NodeID: "n1", Field: "als",
			},
		},
		{
			topic: "sensors/distance/n2/distance_cm",
			want: Classification{
				Route: RoutePartial, Topic: "sensors/distance/n2/distance_cm",
				SensorKind: domain.SensorUltrasonic, NodeID: "n2", Field: "distance_cm",
			},
		},
		{
			topic: "status/n1/last_update",
			want:  Classification{Route: RouteStatus, Topic: "status/n1/last_update", NodeID: "n1"},
		},
		{topic: "status/n1/battery", want: Classification{Route: RouteIgnored, Topic: "status/n1/battery"}},
		{topic: "sensors/brightness/n1", want: Classification{Route: RouteIgnored, Topic: "sensors/brightness/n1"}},
		{topic: "sensors/brightness//als", want: Classification{Route: RouteIgnored, Topic: "sensors/brightness//als"}},
		{topic: "sensors/humidity/n1/rh", want: Classification{Route: RouteIgnored, Topic: "sensors/humidity/n1/rh"}},
		{topic: "", want: Classification{Route: RouteIgnored, Topic: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := Classify(tt.topic); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	topics := []string{
		"params/event/alert/x",
		"params/event/x",
		"sensors/brightness/n1/light",
		"status/n1/last_update",
		"random/topic",
	}
	for _, topic := range topics {
		if first, second := Classify(topic), Classify(topic); first != second {
			t.Errorf("Classify(%q) is not stable: %+v vs %+v", topic, first, second)
		}
	}
}

func TestClassification_IsTombstone(t *testing.T) {
	event := Classify("params/event/lights_on")
	if !event.IsTombstone(nil) || !event.IsTombstone([]byte{}) {
		t.Error("empty payload on an event topic should be a tombstone")
	}
	if event.IsTombstone([]byte("{")) {
		t.Error("malformed payload is a decode failure, not a tombstone")
	}

	alert := Classify("params/event/alert/n1")
	if alert.IsTombstone(nil) {
		t.Error("alert topics never carry tombstones")
	}
}

func TestParseLastUpdate(t *testing.T) {
	tests := []struct {
		payload string
		want    int64
		wantErr bool
	}{
		{"1699564800", 1699564800, false},
		{" 1699564800123\n", 1699564800123, false},
		{"1699564800.75", 1699564800, false},
		{"soon", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"+Inf", 0, true},
		{"1e20", 0, true},
		{"-1e20", 0, true},
		{"9223372036854775807", 0, true},
		{"9.2e18", 9200000000000000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseLastUpdate([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrNotNumeric) {
					t.Errorf("error = %v, want ErrNotNumeric", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLastUpdate(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}
}
