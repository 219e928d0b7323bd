// Package climate contains the shared domain types for the lab climate
// controller.
package climate

import "time"

// Output represents the commanded or observed state of an actuator.
type Output string

const (
	On  Output = "ON"
	Off Output = "OFF"
)

// Kind identifies the type of actuator and therefore its rule strategy.
type Kind string

const (
	KindFan          Kind = "fan"
	KindHeater       Kind = "heater"
	KindHumidifier   Kind = "humidifier"
	KindDehumidifier Kind = "dehumidifier"
)

// KnownKind reports whether k is one of the supported actuator kinds.
func KnownKind(k Kind) bool {
	switch k {
	case KindFan, KindHeater, KindHumidifier, KindDehumidifier:
		return true
	}
	return false
}

// Reading is the latest sample from one sensor. Each new reading for the
// same sensor overwrites the previous one; no history is kept.
type Reading struct {
	SensorID    string
	Temperature float64
	Humidity    float64
	// ObservedAt is the sensor-reported observation time, not arrival time.
	ObservedAt time.Time
}

// ActuatorState tracks one actuator. Commanded is what the controller last
// asked for; Observed is what the actuator last reported back. The two are
// kept separate so feedback can never suppress a needed re-send.
type ActuatorState struct {
	Commanded Output
	Observed  Output
	// LastOff is when the commanded output last transitioned to OFF.
	LastOff time.Time
	// LastChange is when the commanded output last changed at all.
	LastChange time.Time
	// ObservedAt is when the last feedback report arrived.
	ObservedAt time.Time
}

// Thresholds holds the hysteresis band for one actuator kind. For a fan both
// variable pairs are used; single-variable kinds use the pair matching their
// controlled variable and ignore the other.
type Thresholds struct {
	HighTemp float64
	LowTemp  float64
	HighHum  float64
	LowHum   float64
	// OffDelay is the minimum time an actuator must stay OFF after an OFF
	// transition before it may turn ON again.
	OffDelay time.Duration
}

// StalePolicy selects what the rule engine does when the governing sensor
// reading is stale or absent.
type StalePolicy string

const (
	// StaleHold freezes the actuator in its current state until fresh data
	// arrives. This is the default.
	StaleHold StalePolicy = "hold"
	// StaleForceOff turns the actuator off on stale data. Useful for
	// safety-critical loads like heaters.
	StaleForceOff StalePolicy = "force_off"
)

// KnownStalePolicy reports whether p is a supported policy.
func KnownStalePolicy(p StalePolicy) bool {
	return p == StaleHold || p == StaleForceOff
}
