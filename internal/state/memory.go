// Package state holds the live truth of the controller: the latest reading
// per sensor and the rule state per actuator. Every entry has its own lock so
// a burst of updates for one device never blocks another, and no operation
// spans more than one entry.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/climate"
)

// ErrUnknownDevice is returned for ids that are not in the catalog. Ingest
// paths drop such messages; they never create entries.
var ErrUnknownDevice = errors.New("unknown device")

type key struct {
	lab, device string
}

type readingEntry struct {
	mu      sync.Mutex
	reading climate.Reading
	present bool
}

type actuatorEntry struct {
	mu    sync.Mutex
	state climate.ActuatorState
}

// Memory is the concurrency-safe store for one controller process. The entry
// maps are fixed at construction (one slot per configured device), so lookups
// need no outer lock; only the slot itself is locked.
type Memory struct {
	readings  map[key]*readingEntry
	actuators map[key]*actuatorEntry
}

// New builds a Memory with one slot per configured sensor and actuator.
// All actuators start OFF.
func New(cat *catalog.Catalog) *Memory {
	m := &Memory{
		readings:  make(map[key]*readingEntry),
		actuators: make(map[key]*actuatorEntry),
	}
	for labID, lab := range cat.Labs {
		for _, sensorID := range lab.Sensors {
			m.readings[key{labID, sensorID}] = &readingEntry{}
		}
		for _, a := range lab.Actuators {
			m.actuators[key{labID, a.ID}] = &actuatorEntry{
				state: climate.ActuatorState{Commanded: climate.Off, Observed: climate.Off},
			}
		}
	}
	return m
}

// PutReading overwrites the stored reading for the sensor. Duplicates are
// harmless; there is no history.
func (m *Memory) PutReading(lab, sensor string, r climate.Reading) error {
	e, ok := m.readings[key{lab, sensor}]
	if !ok {
		return fmt.Errorf("%w: sensor %s/%s", ErrUnknownDevice, lab, sensor)
	}
	e.mu.Lock()
	e.reading = r
	e.present = true
	e.mu.Unlock()
	return nil
}

// Reading returns a copy of the latest reading. The bool is false when the
// sensor is unconfigured or has not reported yet.
func (m *Memory) Reading(lab, sensor string) (climate.Reading, bool) {
	e, ok := m.readings[key{lab, sensor}]
	if !ok {
		return climate.Reading{}, false
	}
	e.mu.Lock()
	r, present := e.reading, e.present
	e.mu.Unlock()
	return r, present
}

// Actuator returns a copy of the actuator's rule state.
func (m *Memory) Actuator(lab, actuator string) (climate.ActuatorState, bool) {
	e, ok := m.actuators[key{lab, actuator}]
	if !ok {
		return climate.ActuatorState{}, false
	}
	e.mu.Lock()
	s := e.state
	e.mu.Unlock()
	return s, true
}

// SetCommanded records a new commanded output. LastChange always advances;
// LastOff is stamped only on an ON to OFF transition.
func (m *Memory) SetCommanded(lab, actuator string, out climate.Output, now time.Time) error {
	e, ok := m.actuators[key{lab, actuator}]
	if !ok {
		return fmt.Errorf("%w: actuator %s/%s", ErrUnknownDevice, lab, actuator)
	}
	e.mu.Lock()
	if e.state.Commanded != out && out == climate.Off {
		e.state.LastOff = now
	}
	e.state.Commanded = out
	e.state.LastChange = now
	e.mu.Unlock()
	return nil
}

// SetObserved records actuator feedback. It touches only the observed
// fields; the commanded side is owned by the control loop.
func (m *Memory) SetObserved(lab, actuator string, out climate.Output, at time.Time) error {
	e, ok := m.actuators[key{lab, actuator}]
	if !ok {
		return fmt.Errorf("%w: actuator %s/%s", ErrUnknownDevice, lab, actuator)
	}
	e.mu.Lock()
	e.state.Observed = out
	e.state.ObservedAt = at
	e.mu.Unlock()
	return nil
}

// Restore copies entries from a snapshot taken before a catalog reload into
// this memory. Entries for devices no longer configured are dropped; devices
// new in the catalog keep their initial state.
func (m *Memory) Restore(snap Snapshot) {
	for lab, ls := range snap.Labs {
		for sensor, slot := range ls.Readings {
			if !slot.Present {
				continue
			}
			if e, ok := m.readings[key{lab, sensor}]; ok {
				e.mu.Lock()
				e.reading = slot.Reading
				e.present = true
				e.mu.Unlock()
			}
		}
		for actuator, s := range ls.Actuators {
			if e, ok := m.actuators[key{lab, actuator}]; ok {
				e.mu.Lock()
				e.state = s
				e.mu.Unlock()
			}
		}
	}
}

// ReadingSlot is one sensor's slot in a snapshot.
type ReadingSlot struct {
	Reading climate.Reading
	Present bool
}

// LabSnapshot is the copied state of one lab.
type LabSnapshot struct {
	Readings  map[string]ReadingSlot
	Actuators map[string]climate.ActuatorState
}

// Snapshot is a deep copy of everything, safe to hold after the call.
type Snapshot struct {
	Labs map[string]LabSnapshot
}

// Snapshot copies every entry. Entries are copied one at a time under their
// own locks; cross-entry consistency is not promised and not needed.
func (m *Memory) Snapshot() Snapshot {
	snap := Snapshot{Labs: make(map[string]LabSnapshot)}

	labOf := func(lab string) LabSnapshot {
		ls, ok := snap.Labs[lab]
		if !ok {
			ls = LabSnapshot{
				Readings:  make(map[string]ReadingSlot),
				Actuators: make(map[string]climate.ActuatorState),
			}
			snap.Labs[lab] = ls
		}
		return ls
	}

	for k, e := range m.readings {
		e.mu.Lock()
		slot := ReadingSlot{Reading: e.reading, Present: e.present}
		e.mu.Unlock()
		labOf(k.lab).Readings[k.device] = slot
	}
	for k, e := range m.actuators {
		e.mu.Lock()
		s := e.state
		e.mu.Unlock()
		labOf(k.lab).Actuators[k.device] = s
	}

	return snap
}
