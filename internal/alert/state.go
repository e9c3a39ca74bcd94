// Package alert maps fused assessments to alert levels and gates
// notification dispatch behind persistence and cooldown timers.
package alert

import (
	"sync"
	"time"

	"github.com/sweeney/gasguard/internal/sensor"
)

// Level is the detector alert level.
type Level string

const (
	LevelNormal   Level = "NORMAL"
	LevelLow      Level = "LOW"
	LevelCritical Level = "CRITICAL"
)

// Thresholds are the simple-band fallback limits in ppm.
//
// Two inconsistent pairs exist in the field (100/300 and 300/800). The
// state machine uses whichever pair it is constructed with; which one is
// authoritative is an open product question, so neither is hardcoded.
type Thresholds struct {
	Warning float64 // At or above: LOW
	Danger  float64 // At or above: CRITICAL
}

// Evaluate computes the alert level for an assessment. The smart rules
// (confidence/risk/agreement) take precedence; the simple concentration
// bands are the fallback. Pure function.
func Evaluate(a sensor.Assessment, t Thresholds) Level {
	switch {
	case a.Confidence > 70 && a.Risk == sensor.RiskHigh:
		return LevelCritical
	case a.Confidence > 50 && a.Risk == sensor.RiskMedium:
		return LevelLow
	case a.MaxPPM > 200 && a.Agreement == sensor.AgreementExcellent:
		return LevelCritical
	case a.MaxPPM > 100 && a.Agreement == sensor.AgreementGood:
		return LevelLow
	case a.MaxPPM >= t.Danger:
		return LevelCritical
	case a.MaxPPM >= t.Warning:
		return LevelLow
	default:
		return LevelNormal
	}
}

// Transition reports a level change.
type Transition struct {
	From       Level
	To         Level
	At         time.Time
	Assessment sensor.Assessment
}

// Machine tracks the current alert level and reports transitions only on
// change. Mutation happens from the poll tick; SetThresholds may be
// called from command handlers.
type Machine struct {
	mu         sync.Mutex
	thresholds Thresholds
	level      Level
	since      time.Time
	readings   int
}

// NewMachine creates a state machine starting at NORMAL.
func NewMachine(t Thresholds, start time.Time) *Machine {
	return &Machine{
		thresholds: t,
		level:      LevelNormal,
		since:      start,
	}
}

// Process evaluates the assessment and returns a Transition when the
// level changes, nil otherwise. Duration and the reading counter reset
// on every change and advance while the level holds.
func (m *Machine) Process(a sensor.Assessment, now time.Time) *Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	level := Evaluate(a, m.thresholds)
	if level == m.level {
		m.readings++
		return nil
	}

	tr := &Transition{From: m.level, To: level, At: now, Assessment: a}
	m.level = level
	m.since = now
	m.readings = 1
	return tr
}

// Current returns the held alert level.
func (m *Machine) Current() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Duration returns how long the current level has been held.
func (m *Machine) Duration(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.since)
}

// ReadingCount returns the number of polls since the last transition.
func (m *Machine) ReadingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readings
}

// Thresholds returns the active simple-band thresholds.
func (m *Machine) Thresholds() Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds
}

// SetThresholds replaces the simple-band thresholds.
func (m *Machine) SetThresholds(t Thresholds) {
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
}
