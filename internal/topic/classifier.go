// Package topic maps bus topics to the route their payload takes.
// Classification looks at the topic string only and has no state.
package topic

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"sensorwatch-go/internal/domain"
)

// Route is the path a publication takes through the processor.
type Route string

const (
	// RouteIgnored is any topic outside the consumed grammar.
	RouteIgnored Route = "ignored"
	// RouteAlert carries a complete AlertFired object.
	RouteAlert Route = "alert"
	// RouteEvent carries a complete event definition, or a tombstone when empty.
	RouteEvent Route = "event"
	// RoutePartial carries a single sensor field for a node.
	RoutePartial Route = "partial"
	// RouteStatus carries a node's last update time.
	RouteStatus Route = "status"
)

// Topic grammar fragments.
const (
	alertMarker     = "params/event/alert/"
	eventMarker     = domain.EventTopicPrefix
	brightnessRoot  = "sensors/brightness"
	distanceRoot    = "sensors/distance"
	statusRoot      = "status"
	lastUpdateField = "last_update"
)

// Classification describes a topic. Keyed fields are only set for the
// routes that carry them.
type Classification struct {
	Route Route
	Topic string

	// SensorKind, NodeID and Field are set for RoutePartial.
	SensorKind domain.SensorKind
	NodeID     string
	Field      string
}

// IsTombstone reports whether a payload on this topic deletes an event.
// An empty payload on an event topic is a delete, not a decode failure.
func (c Classification) IsTombstone(payload []byte) bool {
	return c.Route == RouteEvent && len(payload) == 0
}

// Classify maps a topic to its classification. It never fails: topics
// outside the grammar classify as RouteIgnored.
func Classify(topic string) Classification {
	switch {
	case strings.Contains(topic, alertMarker):
		return Classification{Route: RouteAlert, Topic: topic}
	case strings.Contains(topic, eventMarker):
		return Classification{Route: RouteEvent, Topic: topic}
	}

	parts := strings.Split(topic, "/")
	switch {
	case len(parts) == 4 && parts[0]+"/"+parts[1] == brightnessRoot && parts[2] != "" && parts[3] != "":
		return partial(topic, domain.SensorLight, parts[2], parts[3])
	case len(parts) == 4 && parts[0]+"/"+parts[1] == distanceRoot && parts[2] != "" && parts[3] != "":
		return partial(topic, domain.SensorUltrasonic, parts[2], parts[3])
	case len(parts) == 3 && parts[0] == statusRoot && parts[1] != "" && parts[2] == lastUpdateField:
		return Classification{Route: RouteStatus, Topic: topic, NodeID: parts[1]}
	}

	return Classification{Route: RouteIgnored, Topic: topic}
}

func partial(topic string, kind domain.SensorKind, nodeID, field string) Classification {
	return Classification{
		Route:      RoutePartial,
		Topic:      topic,
		SensorKind: kind,
		NodeID:     nodeID,
		Field:      field,
	}
}

// ErrNotNumeric is returned for a status payload that is not a decimal number.
var ErrNotNumeric = errors.New("status payload is not a decimal number")

// ParseLastUpdate parses a status payload into a unix timestamp in the
// unit the node sent (seconds or milliseconds).
func ParseLastUpdate(payload []byte) (int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrNotNumeric
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if value >= math.MaxInt64 || value < math.MinInt64 {
		return 0, ErrNotNumeric
	}
	return int64(value), nil
}
