package notify

import (
	"context"
	"sync"

	"github.com/sweeney/gasguard/internal/alert"
)

// Dispatch records one Send call on the FakeDispatcher.
type Dispatch struct {
	Contacts []alert.Contact
	Level    alert.Level
	Message  string
}

// FakeDispatcher records dispatches for test assertions.
type FakeDispatcher struct {
	mu sync.Mutex

	// Dispatches contains all sends in order.
	Dispatches []Dispatch

	// SendError, if set, will be returned by Send.
	SendError error

	// Unconfigured makes Configured return false.
	Unconfigured bool
}

// NewFakeDispatcher creates a FakeDispatcher.
func NewFakeDispatcher() *FakeDispatcher {
	return &FakeDispatcher{}
}

// Send records the dispatch.
func (f *FakeDispatcher) Send(ctx context.Context, contacts []alert.Contact, level alert.Level, message string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendError != nil {
		return 0, f.SendError
	}
	f.Dispatches = append(f.Dispatches, Dispatch{
		Contacts: append([]alert.Contact{}, contacts...),
		Level:    level,
		Message:  message,
	})
	return len(contacts), nil
}

// Configured reports the scripted configuration state.
func (f *FakeDispatcher) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unconfigured
}

// Count returns the number of recorded dispatches.
func (f *FakeDispatcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Dispatches)
}

// Last returns the most recent dispatch, or nil.
func (f *FakeDispatcher) Last() *Dispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Dispatches) == 0 {
		return nil
	}
	d := f.Dispatches[len(f.Dispatches)-1]
	return &d
}
