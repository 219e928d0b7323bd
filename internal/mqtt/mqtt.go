// Package mqtt carries the controller's transport: sensor and feedback
// ingestion, actuator command dispatch, and system lifecycle events, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hglynn/labclimate/internal/climate"
)

// Topic patterns. Each lab's devices publish and subscribe under its own
// prefix; the controller subscribes with wildcards.
const (
	SensorSubscription   = "labs/+/sensors/+/state"
	FeedbackSubscription = "labs/+/actuators/+/state"

	// TopicSystem carries controller lifecycle events (startup, shutdown,
	// heartbeat).
	TopicSystem = "labs/controller/system"
)

// CommandTopic returns the cmd topic for one actuator.
func CommandTopic(lab, actuator string) string {
	return fmt.Sprintf("labs/%s/actuators/%s/cmd", lab, actuator)
}

// ParseSensorTopic extracts lab and sensor ids from a sensor state topic.
func ParseSensorTopic(topic string) (lab, sensor string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "labs" || parts[2] != "sensors" || parts[4] != "state" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// ParseFeedbackTopic extracts lab and actuator ids from a feedback topic.
func ParseFeedbackTopic(topic string) (lab, actuator string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "labs" || parts[2] != "actuators" || parts[4] != "state" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// readingPayload is the wire shape of a sensor reading.
type readingPayload struct {
	T        float64 `json:"t"`
	H        float64 `json:"h"`
	TS       int64   `json:"ts"`
	SensorID string  `json:"sensor_id"`
}

// DecodeReading parses a sensor state payload. The sensor id on the topic
// wins; the body's sensor_id is informational only.
func DecodeReading(payload []byte) (climate.Reading, error) {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return climate.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if p.TS <= 0 {
		return climate.Reading{}, fmt.Errorf("decode reading: missing or invalid ts %d", p.TS)
	}
	return climate.Reading{
		SensorID:    p.SensorID,
		Temperature: p.T,
		Humidity:    p.H,
		ObservedAt:  time.Unix(p.TS, 0).UTC(),
	}, nil
}

// feedbackPayload is the wire shape of an actuator state report.
type feedbackPayload struct {
	State      string `json:"state"`
	TS         int64  `json:"ts"`
	ActuatorID string `json:"actuator_id"`
}

// DecodeFeedback parses an actuator feedback payload.
func DecodeFeedback(payload []byte) (climate.Output, time.Time, error) {
	var p feedbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", time.Time{}, fmt.Errorf("decode feedback: %w", err)
	}
	out := climate.Output(p.State)
	if out != climate.On && out != climate.Off {
		return "", time.Time{}, fmt.Errorf("decode feedback: unknown state %q", p.State)
	}
	if p.TS <= 0 {
		return "", time.Time{}, fmt.Errorf("decode feedback: missing or invalid ts %d", p.TS)
	}
	return out, time.Unix(p.TS, 0).UTC(), nil
}

// Command is one actuator command to be published.
type Command struct {
	Lab      string
	Actuator string
	Action   climate.Output
	// Source identifies the issuer; the controller always stamps itself.
	Source string
	At     time.Time
}

// commandPayload is the wire shape of a command.
type commandPayload struct {
	Action string `json:"action"`
	Source string `json:"source"`
	TS     int64  `json:"ts"`
}

// EncodeCommand produces the JSON body for a command.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(commandPayload{
		Action: string(cmd.Action),
		Source: cmd.Source,
		TS:     cmd.At.Unix(),
	})
}

// Dispatcher publishes actuator commands. Publish must not stall the control
// loop on broker I/O; implementations buffer while disconnected.
type Dispatcher interface {
	PublishCommand(cmd Command) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a controller lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason    string // signal name, shutdown only
	// RawPayload, if set, is published as-is (full status snapshots).
	RawPayload []byte
	Retained   bool
}

// systemPayload is the wire shape of a simple system event.
type systemPayload struct {
	System systemPayloadInner `json:"system"`
}

type systemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON body for a system event. RawPayload
// wins when set.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(systemPayload{
		System: systemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
