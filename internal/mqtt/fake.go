package mqtt

import (
	"sync"

	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/sensor"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Readings contains all reading payloads that were published.
	Readings [][]byte

	// Alerts contains all alert transitions that were published.
	Alerts []alert.Transition

	// Positions contains all published positions.
	Positions []gps.Position

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by every publish method.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishReading records the reading payload.
func (f *FakePublisher) PublishReading(a, b sensor.Reading, fused sensor.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatReadingPayload(a, b, fused)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, payload)
	return nil
}

// PublishAlert records the alert transition.
func (f *FakePublisher) PublishAlert(tr alert.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Alerts = append(f.Alerts, tr)
	return nil
}

// PublishPosition records the position.
func (f *FakePublisher) PublishPosition(p gps.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Positions = append(f.Positions, p)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// AlertCount returns the number of recorded alert transitions.
func (f *FakePublisher) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	f.Readings = nil
	f.Alerts = nil
	f.Positions = nil
	f.SystemEvents = nil
	f.Closed = false
	f.PublishError = nil
	f.mu.Unlock()
}
