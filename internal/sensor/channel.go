package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/adc"
)

// Resistance and concentration clamps.
const (
	MinResistance = 100.0
	MaxResistance = 1e6
	MaxPPM        = 10000.0
)

// ErrStillPreheating is returned for reads taken before the preheat
// window elapses. Use errors.As with *PreheatError for the remaining time.
var ErrStillPreheating = errors.New("sensor: still preheating")

// ErrNotReady is returned when calibration is attempted before the
// channel finishes preheating.
var ErrNotReady = errors.New("sensor: channel not ready")

// PreheatError carries the remaining warm-up time.
type PreheatError struct {
	Remaining time.Duration
}

func (e *PreheatError) Error() string {
	return fmt.Sprintf("sensor: still preheating, %v remaining", e.Remaining.Round(time.Second))
}

func (e *PreheatError) Unwrap() error { return ErrStillPreheating }

// Params holds the per-channel conversion constants.
type Params struct {
	Name        string
	VRef        float64       // Circuit voltage Vc
	Rl          float64       // Load resistance
	CurveA      float64       // ppm = CurveA / (R/Ro)^CurveB
	CurveB      float64
	BaselineOhm float64 // Factory Ro until calibrated
	Sensitivity float64
	Preheat     time.Duration
}

type channelState int

const (
	stateUninitialized channelState = iota
	statePreheating
	stateReady
)

// Channel converts raw samples from one gas sensor into calibrated
// concentrations, gated behind the preheat window.
type Channel struct {
	params Params
	log    *zap.Logger

	mu           sync.Mutex
	state        channelState
	preheatUntil time.Time
	calib        CalibrationState
	lastValid    Reading

	// calInterval spaces auto-calibration samples; overridable in tests.
	calInterval time.Duration
}

// NewChannel creates a gas channel with factory calibration defaults.
// Init must be called before reads.
func NewChannel(params Params, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	if params.Sensitivity <= 0 {
		params.Sensitivity = 1.0
	}
	return &Channel{
		params: params,
		log:    log,
		calib: CalibrationState{
			BaselineOhm: params.BaselineOhm,
			Sensitivity: params.Sensitivity,
		},
		calInterval: time.Second,
	}
}

// Init starts the preheat window.
func (c *Channel) Init(now time.Time) {
	c.mu.Lock()
	c.state = statePreheating
	c.preheatUntil = now.Add(c.params.Preheat)
	c.mu.Unlock()
	c.log.Info("channel preheating",
		zap.String("channel", c.params.Name),
		zap.Duration("preheat", c.params.Preheat))
}

// Ready reports whether the preheat window has elapsed.
func (c *Channel) Ready(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked(now)
}

func (c *Channel) readyLocked(now time.Time) bool {
	if c.state == stateReady {
		return true
	}
	if c.state == statePreheating && !now.Before(c.preheatUntil) {
		c.state = stateReady
		c.log.Info("channel ready", zap.String("channel", c.params.Name))
		return true
	}
	return false
}

// PreheatRemaining returns the time left in the preheat window, or zero.
func (c *Channel) PreheatRemaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readyLocked(now) {
		return 0
	}
	return c.preheatUntil.Sub(now)
}

// Read converts a raw sample into a calibrated reading. Before preheat
// completes it returns a *PreheatError; the reading carries the raw
// values with zero concentration so status consumers still see activity.
func (c *Channel) Read(sample adc.Sample, now time.Time) (Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateUninitialized {
		return Reading{}, fmt.Errorf("%w: channel %s not initialized", ErrNotReady, c.params.Name)
	}

	if !c.readyLocked(now) {
		r := Reading{
			Raw:     sample.Raw,
			Voltage: sample.Voltage,
			Time:    now,
		}
		return r, &PreheatError{Remaining: c.preheatUntil.Sub(now)}
	}

	resistance := ResistanceFor(sample.Voltage, c.params.VRef, c.params.Rl)
	ppm := ConcentrationFor(resistance, c.calib.BaselineOhm, c.params.CurveA, c.params.CurveB)
	ppm *= c.calib.Sensitivity
	if ppm < 0 {
		ppm = 0
	}
	if ppm > MaxPPM {
		ppm = MaxPPM
	}

	r := Reading{
		Raw:        sample.Raw,
		Voltage:    sample.Voltage,
		Resistance: resistance,
		PPM:        ppm,
		Preheated:  true,
		Time:       now,
	}
	c.lastValid = r
	return r, nil
}

// LastValid returns the most recent successful reading. The zero Reading
// is returned before any valid read exists.
func (c *Channel) LastValid() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastValid
}

// Calibration returns the current calibration state.
func (c *Channel) Calibration() CalibrationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calib
}

// Calibrate sets a new baseline resistance measured in known-clean air.
// Rejected with ErrNotReady before preheat completes.
func (c *Channel) Calibrate(baselineOhm float64, now time.Time) error {
	if baselineOhm <= 0 {
		return fmt.Errorf("sensor: baseline resistance must be positive, got %v", baselineOhm)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyLocked(now) {
		return fmt.Errorf("%w: channel %s still preheating", ErrNotReady, c.params.Name)
	}

	c.calib.BaselineOhm = baselineOhm
	c.calib.Drift = 0
	c.calib.LastCalibrated = now
	c.calib.ManualCount++

	c.log.Info("channel calibrated",
		zap.String("channel", c.params.Name),
		zap.Float64("baseline_ohm", baselineOhm))
	return nil
}

// AutoCalibrate averages n consecutive resistance readings spaced one
// second apart, in known-clean air, and commits the mean as the new
// baseline. The sample func supplies raw samples from this channel.
func (c *Channel) AutoCalibrate(ctx context.Context, sample func() (adc.Sample, error), n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("sensor: sample count must be positive, got %d", n)
	}

	c.mu.Lock()
	ready := c.readyLocked(time.Now())
	interval := c.calInterval
	c.mu.Unlock()
	if !ready {
		return 0, fmt.Errorf("%w: channel %s still preheating", ErrNotReady, c.params.Name)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var sum float64
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		s, err := sample()
		if err != nil {
			return 0, fmt.Errorf("auto-calibrate sample %d: %w", i+1, err)
		}
		sum += ResistanceFor(s.Voltage, c.params.VRef, c.params.Rl)
	}

	baseline := sum / float64(n)
	if err := c.Calibrate(baseline, time.Now()); err != nil {
		return 0, err
	}
	return baseline, nil
}

// ResistanceFor converts the sensed output voltage into the sensor
// resistance via the load-resistor divider: R = (Vc - Vout) * Rl / Vout.
// Near-rail voltages clamp to the resistance limits before the division
// can misbehave.
func ResistanceFor(vout, vc, rl float64) float64 {
	if vout <= 0.01 {
		return MaxResistance
	}
	if vout >= 4.9 {
		return MinResistance
	}

	r := (vc - vout) * rl / vout
	if r < MinResistance {
		return MinResistance
	}
	if r > MaxResistance {
		return MaxResistance
	}
	return r
}

// ConcentrationFor converts resistance to ppm on the sensor's power
// curve: ppm = a / (R/Ro)^b. Monotonically non-increasing in R.
func ConcentrationFor(r, ro, a, b float64) float64 {
	if ro <= 0 || r <= 0 {
		return 0
	}
	ratio := r / ro
	if ratio <= 0 {
		return 0
	}
	return a / math.Pow(ratio, b)
}
