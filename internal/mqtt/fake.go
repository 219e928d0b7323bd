package mqtt

import "sync"

// FakeDispatcher records published commands and system events for test
// assertions. Safe for concurrent use so loop tests can read while the loop
// runs.
type FakeDispatcher struct {
	mu sync.Mutex

	commands     []Command
	payloads     [][]byte
	systemEvents []SystemEvent

	// PublishError, if set, is returned by PublishCommand.
	PublishError error

	// Connected controls IsConnected.
	Connected bool

	// Closed tracks whether Close was called.
	Closed bool
}

// NewFakeDispatcher creates a FakeDispatcher for testing.
func NewFakeDispatcher() *FakeDispatcher {
	return &FakeDispatcher{Connected: true}
}

// PublishCommand records the command.
func (f *FakeDispatcher) PublishCommand(cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	f.commands = append(f.commands, cmd)

	payload, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakeDispatcher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systemEvents = append(f.systemEvents, event)
	return nil
}

// Commands returns a copy of the recorded commands.
func (f *FakeDispatcher) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// Payloads returns a copy of the recorded command payloads.
func (f *FakeDispatcher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.payloads))
	copy(out, f.payloads)
	return out
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakeDispatcher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SystemEvent, len(f.systemEvents))
	copy(out, f.systemEvents)
	return out
}

// IsConnected reports the configured connection state.
func (f *FakeDispatcher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the dispatcher as closed.
func (f *FakeDispatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded traffic.
func (f *FakeDispatcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = nil
	f.payloads = nil
	f.systemEvents = nil
	f.PublishError = nil
	f.Closed = false
}
