// Package relay drives actuators wired directly to the controller host as
// GPIO relay outputs. The real implementation uses the Linux GPIO character
// device; the fake implementation allows testing without hardware.
//
// Most actuators are reached over MQTT; the relay board is for the few loads
// (typically fans) cabled to the controller itself.
package relay

import "github.com/hglynn/labclimate/internal/climate"

// Board sets relay output lines.
type Board interface {
	// Set drives the relay on the given BCM line offset. Relay modules are
	// active-low: logical ON pulls the line low.
	Set(line int, out climate.Output) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip a Raspberry Pi exposes its header on.
const DefaultChip = "gpiochip0"
