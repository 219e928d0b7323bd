// Package metrics defines the controller's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains every collector the daemon records into.
type Metrics struct {
	ReadingsIngested  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	CommandsPublished *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	StaleEvaluations  *prometheus.CounterVec
	ActuatorsSkipped  *prometheus.CounterVec
	BrokerConnected   prometheus.Gauge
}

// New creates the collectors. Register attaches them to a registry.
func New() *Metrics {
	return &Metrics{
		ReadingsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "ingest",
				Name:      "readings_total",
				Help:      "Sensor readings accepted into state memory",
			},
			[]string{"lab"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "ingest",
				Name:      "dropped_total",
				Help:      "Inbound messages dropped (malformed payload, unknown device)",
			},
			[]string{"reason"},
		),
		CommandsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "dispatch",
				Name:      "commands_total",
				Help:      "Actuator commands dispatched",
			},
			[]string{"lab", "action"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "rules",
				Name:      "transitions_total",
				Help:      "Commanded state transitions by actuator kind",
			},
			[]string{"kind", "output"},
		),
		StaleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "rules",
				Name:      "stale_evaluations_total",
				Help:      "Evaluations that hit the stale-input branch",
			},
			[]string{"lab"},
		),
		ActuatorsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labclimate",
				Subsystem: "rules",
				Name:      "skipped_total",
				Help:      "Actuators skipped for a tick (missing threshold config)",
			},
			[]string{"lab"},
		),
		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labclimate",
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "Whether the MQTT connection is up (1) or down (0)",
			},
		),
	}
}

// Register adds all collectors to the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ReadingsIngested,
		m.MessagesDropped,
		m.CommandsPublished,
		m.Transitions,
		m.StaleEvaluations,
		m.ActuatorsSkipped,
		m.BrokerConnected,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
