package web

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/climate"
	"github.com/hglynn/labclimate/internal/rules"
	"github.com/hglynn/labclimate/internal/state"
)

// StatusJSON is the top-level snapshot document. The shape follows what the
// aggregation service and the chat bot already consume.
type StatusJSON struct {
	Timestamp string    `json:"timestamp"`
	MQTT      MQTTJSON  `json:"mqtt"`
	Labs      []LabJSON `json:"labs"`
}

// MQTTJSON reports broker connection state.
type MQTTJSON struct {
	Connected bool `json:"connected"`
}

// LabJSON is one lab's live state.
type LabJSON struct {
	LabID     string         `json:"lab_id"`
	Name      string         `json:"name,omitempty"`
	Sensors   []SensorJSON   `json:"sensors"`
	Actuators []ActuatorJSON `json:"actuators"`
	Alerts    AlertsJSON     `json:"alerts"`
}

// SensorJSON is one sensor's latest reading, if any.
type SensorJSON struct {
	SensorID string       `json:"sensor_id"`
	Reading  *ReadingJSON `json:"reading,omitempty"`
	Stale    bool         `json:"stale"`
}

// ReadingJSON mirrors the wire reading shape.
type ReadingJSON struct {
	T  float64 `json:"t"`
	H  float64 `json:"h"`
	TS int64   `json:"ts"`
}

// ActuatorJSON is one actuator's commanded and observed state.
type ActuatorJSON struct {
	ActuatorID string `json:"actuator_id"`
	Kind       string `json:"type"`
	Commanded  string `json:"commanded"`
	Observed   string `json:"observed"`
	LastChange int64  `json:"last_change,omitempty"`
}

// AlertsJSON carries derived conditions for the lab.
type AlertsJSON struct {
	SensorOffline bool `json:"sensor_offline"`
}

func formatStatus(cat *catalog.Catalog, snap state.Snapshot, now time.Time,
	staleAfter time.Duration, connected bool) []byte {
	doc := StatusJSON{
		Timestamp: now.UTC().Format(time.RFC3339),
		MQTT:      MQTTJSON{Connected: connected},
		Labs:      make([]LabJSON, 0, len(cat.Labs)),
	}

	labIDs := make([]string, 0, len(cat.Labs))
	for id := range cat.Labs {
		labIDs = append(labIDs, id)
	}
	sort.Strings(labIDs)

	for _, labID := range labIDs {
		lab := cat.Labs[labID]
		ls := snap.Labs[labID]

		lj := LabJSON{LabID: labID, Name: lab.Name}

		allStale := true
		for _, sensorID := range lab.Sensors {
			slot := ls.Readings[sensorID]
			stale := rules.IsStale(slot.Reading, slot.Present, now, staleAfter)
			if !stale {
				allStale = false
			}
			sj := SensorJSON{SensorID: sensorID, Stale: stale}
			if slot.Present {
				sj.Reading = &ReadingJSON{
					T:  slot.Reading.Temperature,
					H:  slot.Reading.Humidity,
					TS: slot.Reading.ObservedAt.Unix(),
				}
			}
			lj.Sensors = append(lj.Sensors, sj)
		}
		lj.Alerts.SensorOffline = allStale && len(lab.Sensors) > 0

		for _, a := range lab.Actuators {
			as := ls.Actuators[a.ID]
			aj := ActuatorJSON{
				ActuatorID: a.ID,
				Kind:       string(a.Kind),
				Commanded:  outputString(as.Commanded),
				Observed:   outputString(as.Observed),
			}
			if !as.LastChange.IsZero() {
				aj.LastChange = as.LastChange.Unix()
			}
			lj.Actuators = append(lj.Actuators, aj)
		}

		doc.Labs = append(doc.Labs, lj)
	}

	data, _ := json.MarshalIndent(doc, "", "  ")
	return data
}

func outputString(out climate.Output) string {
	if out == "" {
		return string(climate.Off)
	}
	return string(out)
}
