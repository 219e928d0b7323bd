package relay

import (
	"sync"

	"github.com/hglynn/labclimate/internal/climate"
)

// FakeBoard records relay writes for test assertions.
type FakeBoard struct {
	mu sync.Mutex

	// states holds the last output written per line.
	states map[int]climate.Output

	// writes records every Set call in order.
	writes []Write

	// SetError, if set, is returned by Set.
	SetError error

	// Closed tracks whether Close was called.
	Closed bool
}

// Write is one recorded Set call.
type Write struct {
	Line   int
	Output climate.Output
}

// NewFakeBoard creates a FakeBoard for testing.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{states: make(map[int]climate.Output)}
}

// Set records the write.
func (f *FakeBoard) Set(line int, out climate.Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.states[line] = out
	f.writes = append(f.writes, Write{Line: line, Output: out})
	return nil
}

// State returns the last output written to the line.
func (f *FakeBoard) State(line int) (climate.Output, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.states[line]
	return out, ok
}

// Writes returns a copy of all recorded writes.
func (f *FakeBoard) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
