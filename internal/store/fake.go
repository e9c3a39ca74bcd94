package store

import (
	"sync"
	"time"
)

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	mu sync.Mutex

	Readings []Reading
	Alerts   []Alert
	Contacts []Contact
	Profile  *Profile

	// Err, if set, is returned by every operation.
	Err error

	nextID uint
	Closed bool
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{nextID: 1}
}

// CreateReading records the reading and assigns an ID.
func (f *FakeStore) CreateReading(r *Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	r.ID = f.nextID
	f.nextID++
	r.CreatedAt = time.Now()
	f.Readings = append(f.Readings, *r)
	return nil
}

// CreateAlert records the alert and assigns an ID.
func (f *FakeStore) CreateAlert(a *Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	a.ID = f.nextID
	f.nextID++
	a.CreatedAt = time.Now()
	f.Alerts = append(f.Alerts, *a)
	return nil
}

// MarkLatestNotified flags the most recent unnotified alert of the level.
func (f *FakeStore) MarkLatestNotified(level string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := len(f.Alerts) - 1; i >= 0; i-- {
		if f.Alerts[i].Level == level {
			if !f.Alerts[i].Notified {
				now := time.Now()
				f.Alerts[i].Notified = true
				f.Alerts[i].NotifiedAt = &now
			}
			return nil
		}
	}
	return nil
}

// LatestAlert returns the most recent alert of the level, or nil.
func (f *FakeStore) LatestAlert(level string) (*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := len(f.Alerts) - 1; i >= 0; i-- {
		if f.Alerts[i].Level == level {
			a := f.Alerts[i]
			return &a, nil
		}
	}
	return nil, nil
}

// ContactsByKind returns contacts of the given kind.
func (f *FakeStore) ContactsByKind(kind string) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []Contact
	for _, c := range f.Contacts {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetProfile returns the configured profile, or nil.
func (f *FakeStore) GetProfile() (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Profile, nil
}

// Close marks the store as closed.
func (f *FakeStore) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
