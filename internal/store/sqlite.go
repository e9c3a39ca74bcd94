package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and runs
// auto-migration for all models.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&Reading{}, &Alert{}, &Contact{}, &Profile{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// CreateReading inserts a reading record.
func (s *SQLiteStore) CreateReading(r *Reading) error {
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("create reading: %w", err)
	}
	return nil
}

// CreateAlert inserts an alert record.
func (s *SQLiteStore) CreateAlert(a *Alert) error {
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// MarkLatestNotified flags the most recent unnotified alert of the level.
// Already-marked or missing alerts make this a no-op.
func (s *SQLiteStore) MarkLatestNotified(level string) error {
	var a Alert
	err := s.db.Where("level = ?", level).Order("id DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find latest alert: %w", err)
	}
	if a.Notified {
		return nil
	}

	now := time.Now()
	if err := s.db.Model(&a).Updates(Alert{Notified: true, NotifiedAt: &now}).Error; err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	return nil
}

// LatestAlert returns the most recent alert of the level, or nil.
func (s *SQLiteStore) LatestAlert(level string) (*Alert, error) {
	var a Alert
	err := s.db.Where("level = ?", level).Order("id DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest alert: %w", err)
	}
	return &a, nil
}

// ContactsByKind returns contacts of the given kind.
func (s *SQLiteStore) ContactsByKind(kind string) ([]Contact, error) {
	var contacts []Contact
	if err := s.db.Where("kind = ?", kind).Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("list %s contacts: %w", kind, err)
	}
	return contacts, nil
}

// GetProfile returns the owner profile, or nil if unset.
func (s *SQLiteStore) GetProfile() (*Profile, error) {
	var p Profile
	err := s.db.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
