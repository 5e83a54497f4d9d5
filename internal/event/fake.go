package event

import "sync"

// FakeSink records events for test assertions. Safe for concurrent use.
type FakeSink struct {
	mu     sync.Mutex
	events []Event

	// SendError, if set, will be returned by Send.
	SendError error

	// Block, if non-nil, is received from before each Send records.
	Block chan struct{}

	closed bool
}

// NewFakeSink creates a FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Send records the event.
func (f *FakeSink) Send(e Event) error {
	if f.Block != nil {
		<-f.Block
	}
	if f.SendError != nil {
		return f.SendError
	}
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (f *FakeSink) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Lines returns the status lines of the recorded events.
func (f *FakeSink) Lines() []string {
	events := f.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Line()
	}
	return lines
}

// Close marks the sink as closed.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
