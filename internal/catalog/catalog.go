// Package catalog loads the static description of labs, their sensors and
// actuators, and the per-kind threshold bands. The catalog is immutable after
// load; reload is done by loading a fresh copy and swapping it in.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hglynn/labclimate/internal/climate"
)

// Driver selects how commands reach an actuator.
type Driver string

const (
	// DriverMQTT publishes commands to the actuator's cmd topic.
	DriverMQTT Driver = "mqtt"
	// DriverGPIO drives a relay wired to the controller host directly.
	DriverGPIO Driver = "gpio"
)

// Actuator describes one configured actuator within a lab.
type Actuator struct {
	ID   string       `yaml:"id"`
	Kind climate.Kind `yaml:"kind"`
	// Driver defaults to mqtt when empty.
	Driver Driver `yaml:"driver,omitempty"`
	// GPIOLine is the BCM line offset, required for the gpio driver.
	GPIOLine int `yaml:"gpio_line,omitempty"`
}

// Lab is one independent zone: a set of sensors, a set of actuators, and a
// threshold band per actuator kind.
type Lab struct {
	ID         string                          `yaml:"id"`
	Name       string                          `yaml:"name,omitempty"`
	Sensors    []string                        `yaml:"sensors"`
	Actuators  []Actuator                      `yaml:"actuators"`
	Thresholds map[climate.Kind]ThresholdsYAML `yaml:"thresholds"`
}

// ThresholdsYAML is the on-disk shape of a threshold band.
type ThresholdsYAML struct {
	HighTemp    float64 `yaml:"high_temp"`
	LowTemp     float64 `yaml:"low_temp"`
	HighHum     float64 `yaml:"high_hum"`
	LowHum      float64 `yaml:"low_hum"`
	OffDelaySec int     `yaml:"off_delay_sec"`
}

// Catalog is the full set of configured labs, keyed by lab id.
type Catalog struct {
	Labs map[string]*Lab
}

type fileFormat struct {
	Labs []*Lab `yaml:"labs"`
}

var (
	errNoLabs = errors.New("catalog defines no labs")
)

// Load reads and validates a catalog file. A failure here is the only
// condition that should prevent the controller from starting.
func Load(path string) (*Catalog, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var raw fileFormat
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	return build(&raw)
}

func build(raw *fileFormat) (*Catalog, error) {
	if len(raw.Labs) == 0 {
		return nil, errNoLabs
	}

	c := &Catalog{Labs: make(map[string]*Lab, len(raw.Labs))}
	for _, lab := range raw.Labs {
		if lab.ID == "" {
			return nil, errors.New("lab with empty id")
		}
		if _, dup := c.Labs[lab.ID]; dup {
			return nil, fmt.Errorf("duplicate lab id %q", lab.ID)
		}
		if err := validateLab(lab); err != nil {
			return nil, fmt.Errorf("lab %q: %w", lab.ID, err)
		}
		c.Labs[lab.ID] = lab
	}

	return c, nil
}

func validateLab(lab *Lab) error {
	seenSensors := make(map[string]struct{}, len(lab.Sensors))
	for _, id := range lab.Sensors {
		if id == "" {
			return errors.New("sensor with empty id")
		}
		if _, dup := seenSensors[id]; dup {
			return fmt.Errorf("duplicate sensor id %q", id)
		}
		seenSensors[id] = struct{}{}
	}

	seenActuators := make(map[string]struct{}, len(lab.Actuators))
	for i := range lab.Actuators {
		a := &lab.Actuators[i]
		if a.ID == "" {
			return errors.New("actuator with empty id")
		}
		if _, dup := seenActuators[a.ID]; dup {
			return fmt.Errorf("duplicate actuator id %q", a.ID)
		}
		seenActuators[a.ID] = struct{}{}

		if !climate.KnownKind(a.Kind) {
			return fmt.Errorf("actuator %q: unknown kind %q", a.ID, a.Kind)
		}
		if a.Driver == "" {
			a.Driver = DriverMQTT
		}
		switch a.Driver {
		case DriverMQTT:
		case DriverGPIO:
			if a.GPIOLine <= 0 {
				return fmt.Errorf("actuator %q: gpio driver requires gpio_line", a.ID)
			}
		default:
			return fmt.Errorf("actuator %q: unknown driver %q", a.ID, a.Driver)
		}
	}

	for kind, t := range lab.Thresholds {
		if !climate.KnownKind(kind) {
			return fmt.Errorf("thresholds for unknown kind %q", kind)
		}
		if err := validateThresholds(t); err != nil {
			return fmt.Errorf("thresholds for %q: %w", kind, err)
		}
	}

	return nil
}

func validateThresholds(t ThresholdsYAML) error {
	if t.LowTemp > t.HighTemp {
		return fmt.Errorf("low_temp %v above high_temp %v", t.LowTemp, t.HighTemp)
	}
	if t.LowHum > t.HighHum {
		return fmt.Errorf("low_hum %v above high_hum %v", t.LowHum, t.HighHum)
	}
	if t.OffDelaySec < 0 {
		return fmt.Errorf("negative off_delay_sec %d", t.OffDelaySec)
	}
	return nil
}

// Thresholds returns the band for the given lab and actuator kind. The
// second return is false when no band is configured; callers must treat that
// as a skip condition, never as an implicit default.
func (c *Catalog) Thresholds(labID string, kind climate.Kind) (climate.Thresholds, bool) {
	lab, ok := c.Labs[labID]
	if !ok {
		return climate.Thresholds{}, false
	}
	t, ok := lab.Thresholds[kind]
	if !ok {
		return climate.Thresholds{}, false
	}
	return climate.Thresholds{
		HighTemp: t.HighTemp,
		LowTemp:  t.LowTemp,
		HighHum:  t.HighHum,
		LowHum:   t.LowHum,
		OffDelay: time.Duration(t.OffDelaySec) * time.Second,
	}, true
}

// HasSensor reports whether the sensor is configured in the given lab.
func (c *Catalog) HasSensor(labID, sensorID string) bool {
	lab, ok := c.Labs[labID]
	if !ok {
		return false
	}
	for _, id := range lab.Sensors {
		if id == sensorID {
			return true
		}
	}
	return false
}

// Actuator returns the configured actuator, or ok=false if unknown.
func (c *Catalog) Actuator(labID, actuatorID string) (Actuator, bool) {
	lab, ok := c.Labs[labID]
	if !ok {
		return Actuator{}, false
	}
	for _, a := range lab.Actuators {
		if a.ID == actuatorID {
			return a, true
		}
	}
	return Actuator{}, false
}
