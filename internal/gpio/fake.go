package gpio

// Write records one Set call.
type Write struct {
	Line int
	On   bool
}

// FakeRelays is a test double that records relay writes.
type FakeRelays struct {
	// State holds the last value written per line.
	State map[int]bool
	// Writes contains every successful Set call in order.
	Writes []Write
	// SetError, if set, will be returned by Set().
	SetError error
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeRelays creates a FakeRelays with no lines energised.
func NewFakeRelays() *FakeRelays {
	return &FakeRelays{State: make(map[int]bool)}
}

// Set records the write.
func (f *FakeRelays) Set(line int, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.State[line] = on
	f.Writes = append(f.Writes, Write{Line: line, On: on})
	return nil
}

// Close turns every line off and marks the relays as closed.
func (f *FakeRelays) Close() error {
	for line := range f.State {
		f.State[line] = false
	}
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeRelays) Reset() {
	f.State = make(map[int]bool)
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}
