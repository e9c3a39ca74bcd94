package gpio

import (
	"sync"
	"time"
)

// Write records a single write that went through the FakeWriter.
type Write struct {
	Pin   int
	Value int
	Time  time.Time
}

// FakeWriter is a test double that records writes and can inject failures.
type FakeWriter struct {
	mu sync.Mutex

	// Writes contains all successful writes in order.
	Writes []Write

	// FailNext maps a pin to a number of writes that should fail with
	// WriteError before succeeding again. Drives retry tests.
	FailNext map[int]int

	// WriteError is the error returned for injected failures.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{FailNext: make(map[int]int)}
}

// Write records the write, or fails if a failure is scripted for the pin.
func (f *FakeWriter) Write(pin, value int, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := f.FailNext[pin]; n > 0 {
		f.FailNext[pin] = n - 1
		return f.WriteError
	}

	f.Writes = append(f.Writes, Write{Pin: pin, Value: value, Time: time.Now()})
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// WritesFor returns the recorded writes for a single pin, in order.
func (f *FakeWriter) WritesFor(pin int) []Write {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Write
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// LastValue returns the value of the most recent write to pin, or -1 if
// the pin was never written.
func (f *FakeWriter) LastValue(pin int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.Writes) - 1; i >= 0; i-- {
		if f.Writes[i].Pin == pin {
			return f.Writes[i].Value
		}
	}
	return -1
}

// Reset clears recorded writes and scripted failures.
func (f *FakeWriter) Reset() {
	f.mu.Lock()
	f.Writes = nil
	f.FailNext = make(map[int]int)
	f.Closed = false
	f.mu.Unlock()
}
