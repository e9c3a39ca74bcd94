package gps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lastKnownFile is the on-disk shape of the persisted last good fix.
// It carries everything needed to reconstruct a cached Position after a
// restart.
type lastKnownFile struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	Accuracy   float64 `json:"accuracy"`
	Satellites int     `json:"satellites"`
	HDOP       float64 `json:"hdop"`
	Signal     string  `json:"signal_strength"`
	Timestamp  string  `json:"timestamp"`
}

// LoadLastKnown reads the persisted last good fix. A missing file
// returns (nil, nil): a fresh install simply has no history.
func LoadLastKnown(path string) (*Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read last-known position: %w", err)
	}

	var f lastKnownFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse last-known position: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, f.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse last-known timestamp %q: %w", f.Timestamp, err)
	}

	return &Position{
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Altitude:   f.Altitude,
		Accuracy:   f.Accuracy,
		Satellites: f.Satellites,
		HDOP:       f.HDOP,
		Signal:     SignalStrength(f.Signal),
		Time:       ts,
		Source:     SourceCached,
	}, nil
}

// SaveLastKnown writes the fix to disk, creating parent directories as
// needed. The write goes through a temp file and rename so a crash never
// leaves a torn file.
func SaveLastKnown(path string, p Position) error {
	f := lastKnownFile{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Altitude:   p.Altitude,
		Accuracy:   p.Accuracy,
		Satellites: p.Satellites,
		HDOP:       p.HDOP,
		Signal:     string(p.Signal),
		Timestamp:  p.Time.UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal last-known position: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create position dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write last-known position: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit last-known position: %w", err)
	}
	return nil
}
