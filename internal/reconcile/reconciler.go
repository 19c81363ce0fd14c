// Package reconcile assembles sensor readings whose fields are published
// one topic at a time.
package reconcile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sensorwatch-go/internal/domain"
)

// Field names as they appear in the last topic segment.
const (
	FieldLight      = "light"
	FieldLux        = "lux"
	FieldALS        = "als"
	FieldEstado     = "estado"
	FieldDistanceCM = "distance_cm"
)

// Errors describing a dropped field. The accumulator is left untouched.
var (
	ErrUnknownField      = errors.New("unknown sensor field")
	ErrInvalidFieldValue = errors.New("invalid sensor field value")
)

// key identifies one accumulator.
type key struct {
	kind   domain.SensorKind
	nodeID string
}

// partial holds the fields received so far for one node. A nil pointer
// means the field has not arrived yet.
type partial struct {
	lux        *float64
	als        *int64
	estado     *domain.Estado
	distanceCM *float64
}

// complete reports whether every required field for kind has arrived.
func (p *partial) complete(kind domain.SensorKind) bool {
	switch kind {
	case domain.SensorLight:
		return p.lux != nil && p.als != nil && p.estado != nil
	case domain.SensorUltrasonic:
		return p.distanceCM != nil && p.estado != nil
	default:
		return false
	}
}

// Reconciler merges single-field publications into complete readings.
// An accumulator is created on the first field for a node and removed the
// moment its reading is emitted, so every reading is emitted exactly once.
//
// Reconciler is not safe for concurrent use. It is owned by the single
// goroutine that consumes the inbound stream.
type Reconciler struct {
	partials map[key]*partial
}

// New creates an empty reconciler.
func New() *Reconciler {
	return &Reconciler{
		partials: make(map[key]*partial),
	}
}

// Ingest merges one field value for a node. It returns the completed
// reading when this field made the set complete, or nil otherwise.
// A field that cannot be parsed is dropped and reported through the error;
// fields accumulated earlier are kept.
func (r *Reconciler) Ingest(kind domain.SensorKind, nodeID, field string, raw []byte) (*domain.SensorReading, error) {
	value := strings.TrimSpace(string(raw))

	k := key{kind: kind, nodeID: nodeID}
	current := r.partials[k]
	if current == nil {
		current = &partial{}
	}

	if err := merge(current, kind, field, value); err != nil {
		return nil, err
	}

	if !current.complete(kind) {
		r.partials[k] = current
		return nil, nil
	}

	delete(r.partials, k)
	return build(kind, nodeID, current), nil
}

// merge parses value and stores it on p. Last value wins per field.
func merge(p *partial, kind domain.SensorKind, field, value string) error {
	switch kind {
	case domain.SensorLight:
		switch field {
		case FieldLight, FieldLux:
			f, err := parseFloat(value)
			if err != nil {
				return fieldError(field, value, err)
			}
			p.lux = &f
		case FieldALS:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fieldError(field, value, ErrInvalidFieldValue)
			}
			p.als = &n
		case FieldEstado:
			e := domain.Estado(value)
			if !kind.ValidEstado(e) {
				return fieldError(field, value, ErrInvalidFieldValue)
			}
			p.estado = &e
		default:
			return fmt.Errorf("%w: %s/%s", ErrUnknownField, kind, field)
		}
	case domain.SensorUltrasonic:
		switch field {
		case FieldDistanceCM:
			f, err := parseFloat(value)
			if err != nil {
				return fieldError(field, value, err)
			}
			p.distanceCM = &f
		case FieldEstado:
			e := domain.Estado(value)
			if !kind.ValidEstado(e) {
				return fieldError(field, value, ErrInvalidFieldValue)
			}
			p.estado = &e
		default:
			return fmt.Errorf("%w: %s/%s", ErrUnknownField, kind, field)
		}
	default:
		return fmt.Errorf("%w: sensor kind %q", ErrUnknownField, kind)
	}
	return nil
}

func parseFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidFieldValue
	}
	return f, nil
}

func fieldError(field, value string, err error) error {
	return fmt.Errorf("%w: %s=%q", err, field, value)
}

// build converts a complete accumulator into a reading.
func build(kind domain.SensorKind, nodeID string, p *partial) *domain.SensorReading {
	reading := &domain.SensorReading{
		NodeID:     nodeID,
		SensorKind: kind,
	}

	switch kind {
	case domain.SensorLight:
		reading.Meta = domain.NewMeta("sensors/brightness/" + nodeID)
		reading.Light = &domain.LightData{
			Lux:    *p.lux,
			ALS:    *p.als,
			Estado: *p.estado,
		}
	case domain.SensorUltrasonic:
		reading.Meta = domain.NewMeta("sensors/distance/" + nodeID)
		reading.Ultrasonic = &domain.UltrasonicData{
			DistanceCM: *p.distanceCM,
			Estado:     *p.estado,
		}
	}
	return reading
}

// Pending returns the number of open accumulators for a sensor kind.
func (r *Reconciler) Pending(kind domain.SensorKind) int {
	n := 0
	for k := range r.partials {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// Reset discards every open accumulator.
func (r *Reconciler) Reset() {
	r.partials = make(map[key]*partial)
}
