package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/climate"
	"github.com/hglynn/labclimate/internal/state"
)

func ingestFixture() (*Ingestor, *state.Memory) {
	cat := &catalog.Catalog{Labs: map[string]*catalog.Lab{
		"lab-a": {
			ID:      "lab-a",
			Sensors: []string{"s1"},
			Actuators: []catalog.Actuator{
				{ID: "fan-1", Kind: climate.KindFan, Driver: catalog.DriverMQTT},
			},
		},
	}}
	mem := state.New(cat)
	in := NewIngestor(func() (*catalog.Catalog, *state.Memory) { return cat, mem }, nil)
	return in, mem
}

func TestHandleSensorStoresReading(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleSensor("labs/lab-a/sensors/s1/state",
		[]byte(`{"t": 22.5, "h": 51, "ts": 1767265200, "sensor_id": "s1"}`))

	r, ok := mem.Reading("lab-a", "s1")
	require.True(t, ok)
	assert.Equal(t, 22.5, r.Temperature)
	assert.Equal(t, 51.0, r.Humidity)
	assert.Equal(t, time.Unix(1767265200, 0).UTC(), r.ObservedAt)
}

func TestHandleSensorDuplicateOverwrites(t *testing.T) {
	in, mem := ingestFixture()

	payload := []byte(`{"t": 22.5, "h": 51, "ts": 1767265200, "sensor_id": "s1"}`)
	in.HandleSensor("labs/lab-a/sensors/s1/state", payload)
	in.HandleSensor("labs/lab-a/sensors/s1/state", payload)

	r, ok := mem.Reading("lab-a", "s1")
	require.True(t, ok)
	assert.Equal(t, 22.5, r.Temperature)
}

func TestHandleSensorDropsMalformed(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleSensor("labs/lab-a/sensors/s1/state", []byte("not json"))

	_, ok := mem.Reading("lab-a", "s1")
	assert.False(t, ok, "memory must be untouched by a bad payload")
}

func TestHandleSensorDropsUnknownDevice(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleSensor("labs/lab-a/sensors/ghost/state",
		[]byte(`{"t": 22.5, "h": 51, "ts": 1767265200}`))
	in.HandleSensor("labs/lab-x/sensors/s1/state",
		[]byte(`{"t": 22.5, "h": 51, "ts": 1767265200}`))

	_, ok := mem.Reading("lab-a", "s1")
	assert.False(t, ok)
}

func TestHandleSensorDropsBadTopic(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleSensor("labs/lab-a/sensors", []byte(`{"t": 1, "h": 1, "ts": 1767265200}`))

	_, ok := mem.Reading("lab-a", "s1")
	assert.False(t, ok)
}

func TestHandleFeedbackUpdatesObservedOnly(t *testing.T) {
	in, mem := ingestFixture()
	require.NoError(t, mem.SetCommanded("lab-a", "fan-1", climate.On, time.Unix(100, 0)))

	in.HandleFeedback("labs/lab-a/actuators/fan-1/state",
		[]byte(`{"state": "OFF", "ts": 1767265200, "actuator_id": "fan-1"}`))

	s, ok := mem.Actuator("lab-a", "fan-1")
	require.True(t, ok)
	assert.Equal(t, climate.On, s.Commanded, "feedback must not touch the commanded side")
	assert.Equal(t, climate.Off, s.Observed)
	assert.Equal(t, time.Unix(1767265200, 0).UTC(), s.ObservedAt)
}

func TestHandleFeedbackDropsUnknownActuator(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleFeedback("labs/lab-a/actuators/ghost/state",
		[]byte(`{"state": "ON", "ts": 1767265200}`))

	// The configured actuator is unaffected.
	s, ok := mem.Actuator("lab-a", "fan-1")
	require.True(t, ok)
	assert.Equal(t, climate.Off, s.Observed)
	assert.True(t, s.ObservedAt.IsZero())
}

func TestHandleFeedbackDropsMalformed(t *testing.T) {
	in, mem := ingestFixture()

	in.HandleFeedback("labs/lab-a/actuators/fan-1/state", []byte(`{"state": "SIDEWAYS", "ts": 5}`))

	s, _ := mem.Actuator("lab-a", "fan-1")
	assert.True(t, s.ObservedAt.IsZero())
}
