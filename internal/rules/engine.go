// Package rules contains the pure decision logic of the controller: the
// per-kind hysteresis evaluation, the off-delay gate, and the staleness
// watchdog. Nothing here does I/O or holds state; time always arrives as a
// parameter.
package rules

import (
	"time"

	"github.com/hglynn/labclimate/internal/climate"
)

// Decision is the outcome of evaluating one actuator for one tick.
type Decision struct {
	// Output is the desired commanded output after this evaluation.
	Output climate.Output
	// Changed reports whether Output differs from the prior commanded
	// output, i.e. whether a command should be dispatched.
	Changed bool
	// Held is true when threshold evaluation was skipped on stale input.
	Held bool
	// Locked is true when thresholds demanded ON but the off-delay has not
	// elapsed yet. The demand is re-checked on a later tick.
	Locked bool
}

// Evaluate maps one actuator's inputs to its next output. Pure: same inputs,
// same decision.
//
// Stale input is a first-class branch, not an error. Under StaleHold the
// current state is frozen until fresh data arrives; under StaleForceOff an
// ON actuator is turned off (and the off-delay applies to its recovery).
func Evaluate(kind climate.Kind, r climate.Reading, stale bool, prior climate.ActuatorState,
	t climate.Thresholds, policy climate.StalePolicy, now time.Time) Decision {
	if stale {
		if policy == climate.StaleForceOff && prior.Commanded == climate.On {
			return Decision{Output: climate.Off, Changed: true, Held: true}
		}
		return Decision{Output: prior.Commanded, Held: true}
	}

	desired := desiredOutput(kind, r, prior.Commanded, t)

	// Off-delay gate: an actuator that turned OFF must stay OFF until
	// OffDelay has elapsed since that transition. The ON demand is not
	// queued; it must still hold when the window expires.
	if desired == climate.On && prior.Commanded == climate.Off {
		if now.Sub(prior.LastOff) < t.OffDelay {
			return Decision{Output: climate.Off, Locked: true}
		}
	}

	return Decision{Output: desired, Changed: desired != prior.Commanded}
}

// desiredOutput applies the kind-specific hysteresis band. Every kind holds
// its current output inside the dead band between low and high.
func desiredOutput(kind climate.Kind, r climate.Reading, current climate.Output, t climate.Thresholds) climate.Output {
	switch kind {
	case climate.KindFan:
		// OR to activate, AND to deactivate: the fan stays on until both
		// variables have recovered, which stops flapping when only one does.
		if r.Temperature >= t.HighTemp || r.Humidity >= t.HighHum {
			return climate.On
		}
		if r.Temperature < t.LowTemp && r.Humidity < t.LowHum {
			return climate.Off
		}
		return current

	case climate.KindHeater:
		if r.Temperature <= t.LowTemp {
			return climate.On
		}
		if r.Temperature >= t.HighTemp {
			return climate.Off
		}
		return current

	case climate.KindHumidifier:
		if r.Humidity <= t.LowHum {
			return climate.On
		}
		if r.Humidity >= t.HighHum {
			return climate.Off
		}
		return current

	case climate.KindDehumidifier:
		if r.Humidity >= t.HighHum {
			return climate.On
		}
		if r.Humidity <= t.LowHum {
			return climate.Off
		}
		return current
	}

	// Unknown kinds never actuate.
	return current
}
