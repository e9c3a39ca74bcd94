// Package status provides a thread-safe status tracker for the gasguard
// daemon. It is read by the HTTP snapshot endpoint and the MQTT system
// events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/sensor"
)

// Config contains daemon configuration for display. The legacy pair is
// shown alongside the active thresholds; it drives nothing.
type Config struct {
	PollMs           int64
	Broker           string
	HTTPAddr         string
	WarningPPM       float64
	DangerPPM        float64
	LegacyWarningPPM float64
	LegacyDangerPPM  float64
}

// Counts tracks event totals since startup.
type Counts struct {
	Readings      int
	Transitions   int
	Notifications int
	ReadErrors    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Level            alert.Level
	A                sensor.Reading
	B                sensor.Reading
	Assessment       sensor.Assessment
	Ready            bool // both channels past preheat
	PreheatRemaining time.Duration
	Position         *gps.Position
	GPS              gps.Status
	QueueDepth       int
	Counts           Counts
	MQTTConnected    bool
	StartTime        time.Time
	Now              time.Time
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Level:     alert.LevelNormal,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateReadings sets the per-channel readings, the fused assessment,
// and the alert level. Called from the control loop on every tick.
func (t *Tracker) UpdateReadings(a, b sensor.Reading, fused sensor.Assessment, level alert.Level, ready bool, preheatRemaining time.Duration) {
	t.mu.Lock()
	t.snap.A = a
	t.snap.B = b
	t.snap.Assessment = fused
	t.snap.Level = level
	t.snap.Ready = ready
	t.snap.PreheatRemaining = preheatRemaining
	t.snap.Counts.Readings++
	t.mu.Unlock()
}

// NoteTransition counts an alert-level change.
func (t *Tracker) NoteTransition() {
	t.mu.Lock()
	t.snap.Counts.Transitions++
	t.mu.Unlock()
}

// NoteNotification counts a dispatched notification.
func (t *Tracker) NoteNotification() {
	t.mu.Lock()
	t.snap.Counts.Notifications++
	t.mu.Unlock()
}

// NoteReadError counts a failed channel read.
func (t *Tracker) NoteReadError() {
	t.mu.Lock()
	t.snap.Counts.ReadErrors++
	t.mu.Unlock()
}

// SetPosition sets the current best-effort position (may be nil).
func (t *Tracker) SetPosition(p *gps.Position) {
	t.mu.Lock()
	t.snap.Position = p
	t.mu.Unlock()
}

// SetGPSStatus sets the position-service health.
func (t *Tracker) SetGPSStatus(st gps.Status) {
	t.mu.Lock()
	t.snap.GPS = st
	t.mu.Unlock()
}

// SetQueueDepth sets the actuator queue depth.
func (t *Tracker) SetQueueDepth(depth int) {
	t.mu.Lock()
	t.snap.QueueDepth = depth
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetThresholds updates the displayed threshold pair.
func (t *Tracker) SetThresholds(warning, danger float64) {
	t.mu.Lock()
	t.snap.Config.WarningPPM = warning
	t.snap.Config.DangerPPM = danger
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
