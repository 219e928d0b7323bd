package mqtt

import (
	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/logger"
	"github.com/hglynn/labclimate/internal/metrics"
	"github.com/hglynn/labclimate/internal/state"
)

// Source yields the current catalog and state memory. A catalog reload swaps
// both at once, so the ingestor always validates against the generation it
// writes into.
type Source func() (*catalog.Catalog, *state.Memory)

// Ingestor routes inbound broker messages into state memory. Every failure
// mode drops the message, logs, and counts; nothing here is fatal and the
// memory is never touched by a bad message.
type Ingestor struct {
	source  Source
	metrics *metrics.Metrics
}

// NewIngestor creates an ingestor backed by the given source.
func NewIngestor(source Source, m *metrics.Metrics) *Ingestor {
	return &Ingestor{source: source, metrics: m}
}

// HandleSensor processes one sensor state message.
func (in *Ingestor) HandleSensor(topic string, payload []byte) {
	lab, sensor, ok := ParseSensorTopic(topic)
	if !ok {
		in.drop("bad_topic", "sensor message on unparseable topic %q", topic)
		return
	}

	cat, mem := in.source()
	if !cat.HasSensor(lab, sensor) {
		in.drop("unknown_device", "reading for unconfigured sensor %s/%s", lab, sensor)
		return
	}

	reading, err := DecodeReading(payload)
	if err != nil {
		in.drop("malformed", "sensor %s/%s: %v", lab, sensor, err)
		return
	}

	if err := mem.PutReading(lab, sensor, reading); err != nil {
		in.drop("unknown_device", "sensor %s/%s: %v", lab, sensor, err)
		return
	}

	if in.metrics != nil {
		in.metrics.ReadingsIngested.WithLabelValues(lab).Inc()
	}
	logger.L().Debugf("ingest: %s/%s t=%.1f h=%.1f", lab, sensor, reading.Temperature, reading.Humidity)
}

// HandleFeedback processes one actuator state report. Feedback only ever
// touches the observed side of the actuator's state.
func (in *Ingestor) HandleFeedback(topic string, payload []byte) {
	lab, actuator, ok := ParseFeedbackTopic(topic)
	if !ok {
		in.drop("bad_topic", "feedback on unparseable topic %q", topic)
		return
	}

	cat, mem := in.source()
	if _, ok := cat.Actuator(lab, actuator); !ok {
		in.drop("unknown_device", "feedback for unconfigured actuator %s/%s", lab, actuator)
		return
	}

	out, at, err := DecodeFeedback(payload)
	if err != nil {
		in.drop("malformed", "feedback %s/%s: %v", lab, actuator, err)
		return
	}

	if err := mem.SetObserved(lab, actuator, out, at); err != nil {
		in.drop("unknown_device", "feedback %s/%s: %v", lab, actuator, err)
		return
	}

	logger.L().Debugf("feedback: %s/%s reports %s", lab, actuator, out)
}

func (in *Ingestor) drop(reason, format string, args ...any) {
	if in.metrics != nil {
		in.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	}
	logger.L().Warnf("ingest: dropped ("+reason+"): "+format, args...)
}
