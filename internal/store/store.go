// Package store persists readings, alerts, contacts, and the owner
// profile in SQLite through GORM.
package store

import "time"

// Contact kinds.
const (
	KindInternal = "internal" // household/site recipients
	KindExternal = "external" // emergency services
)

// Reading is a persisted sensor reading snapshot.
type Reading struct {
	ID         uint      `gorm:"primarykey"`
	CreatedAt  time.Time `gorm:"index"`
	PPMA       float64
	PPMB       float64
	MaxPPM     float64
	GasType    string
	Confidence int
	Risk       string
}

// Alert is a persisted alert record referencing the reading that
// triggered it.
type Alert struct {
	ID         uint      `gorm:"primarykey"`
	CreatedAt  time.Time `gorm:"index"`
	ReadingID  uint
	Level      string `gorm:"index"`
	Notified   bool
	NotifiedAt *time.Time
}

// Contact is a notification recipient.
type Contact struct {
	ID    uint   `gorm:"primarykey"`
	Name  string
	Phone string
	URL   string // shoutrrr service URL, optional
	Kind  string `gorm:"index"` // internal or external
}

// Profile is the owner's settings. A single row with ID 1.
type Profile struct {
	ID            uint `gorm:"primarykey"`
	Name          string
	Phone         string
	URL           string
	ManualAddress string
}

// Store is the persistence boundary consumed by the control loop and the
// notification gate.
type Store interface {
	// CreateReading inserts a reading record and fills its ID.
	CreateReading(r *Reading) error

	// CreateAlert inserts an alert record referencing a reading.
	CreateAlert(a *Alert) error

	// MarkLatestNotified flags the most recent alert of the level as
	// notified. Idempotent: a no-op when already marked or absent.
	MarkLatestNotified(level string) error

	// LatestAlert returns the most recent alert of the level, or nil.
	LatestAlert(level string) (*Alert, error)

	// ContactsByKind returns contacts of the given kind.
	ContactsByKind(kind string) ([]Contact, error)

	// GetProfile returns the owner profile, or nil if unset.
	GetProfile() (*Profile, error)

	// Close releases the database.
	Close() error
}
