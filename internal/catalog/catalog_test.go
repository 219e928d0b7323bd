package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hglynn/labclimate/internal/climate"
)

const validCatalog = `
labs:
  - id: lab-a
    name: Greenhouse A
    sensors: [s1, s2]
    actuators:
      - id: fan-1
        kind: fan
      - id: heat-1
        kind: heater
      - id: fan-2
        kind: fan
        driver: gpio
        gpio_line: 17
    thresholds:
      fan:
        high_temp: 30
        low_temp: 26
        high_hum: 70
        low_hum: 60
        off_delay_sec: 120
      heater:
        high_temp: 24
        low_temp: 20
        off_delay_sec: 300
  - id: lab-b
    sensors: [s1]
    actuators:
      - id: hum-1
        kind: humidifier
    thresholds:
      humidifier:
        high_hum: 60
        low_hum: 40
`

func writeCatalog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadValidCatalog(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)
	require.Len(t, cat.Labs, 2)

	lab := cat.Labs["lab-a"]
	require.NotNil(t, lab)
	assert.Equal(t, "Greenhouse A", lab.Name)
	assert.Len(t, lab.Sensors, 2)
	assert.Len(t, lab.Actuators, 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeCatalog(t, "labs: ["))
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"no labs", "labs: []"},
		{"empty lab id", "labs:\n  - id: \"\"\n"},
		{"duplicate lab", "labs:\n  - id: a\n    sensors: [s]\n  - id: a\n    sensors: [s]\n"},
		{"duplicate sensor", "labs:\n  - id: a\n    sensors: [s, s]\n"},
		{"unknown kind", "labs:\n  - id: a\n    actuators:\n      - id: x\n        kind: sprinkler\n"},
		{"gpio without line", "labs:\n  - id: a\n    actuators:\n      - id: x\n        kind: fan\n        driver: gpio\n"},
		{"unknown driver", "labs:\n  - id: a\n    actuators:\n      - id: x\n        kind: fan\n        driver: carrier-pigeon\n"},
		{"inverted temp band", "labs:\n  - id: a\n    thresholds:\n      fan:\n        high_temp: 20\n        low_temp: 30\n"},
		{"negative off delay", "labs:\n  - id: a\n    thresholds:\n      fan:\n        off_delay_sec: -5\n"},
		{"thresholds for unknown kind", "labs:\n  - id: a\n    thresholds:\n      sprinkler:\n        high_temp: 30\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestDriverDefaultsToMQTT(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	a, ok := cat.Actuator("lab-a", "fan-1")
	require.True(t, ok)
	assert.Equal(t, DriverMQTT, a.Driver)

	a, ok = cat.Actuator("lab-a", "fan-2")
	require.True(t, ok)
	assert.Equal(t, DriverGPIO, a.Driver)
	assert.Equal(t, 17, a.GPIOLine)
}

func TestThresholdsLookup(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	band, ok := cat.Thresholds("lab-a", climate.KindFan)
	require.True(t, ok)
	assert.Equal(t, 30.0, band.HighTemp)
	assert.Equal(t, 26.0, band.LowTemp)
	assert.Equal(t, 120*time.Second, band.OffDelay)

	// No band configured for this kind in this lab: callers must skip, so
	// the miss has to be explicit.
	_, ok = cat.Thresholds("lab-b", climate.KindFan)
	assert.False(t, ok)

	_, ok = cat.Thresholds("lab-x", climate.KindFan)
	assert.False(t, ok)
}

func TestHasSensor(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	assert.True(t, cat.HasSensor("lab-a", "s1"))
	assert.False(t, cat.HasSensor("lab-a", "ghost"))
	assert.False(t, cat.HasSensor("lab-x", "s1"))
}
