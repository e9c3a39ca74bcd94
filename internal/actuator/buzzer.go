package actuator

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Step is one on/off element of a buzzer pattern.
type Step struct {
	On  time.Duration
	Off time.Duration
}

// Pattern is a named buzzer sequence.
type Pattern struct {
	Name   string
	Steps  []Step
	Repeat bool

	// Hold keeps the pattern playing after the alert clears, restarting
	// the sequence if it had finished, before auto-stopping. The built-in
	// patterns use zero hold, which makes stop immediate.
	Hold time.Duration
}

// Built-in patterns.
var builtinPatterns = map[string]Pattern{
	"critical": {
		Name:   "critical",
		Steps:  []Step{{On: 200 * time.Millisecond, Off: 100 * time.Millisecond}},
		Repeat: true,
	},
	"warning": {
		Name:   "warning",
		Steps:  []Step{{On: 500 * time.Millisecond, Off: 500 * time.Millisecond}},
		Repeat: true,
	},
	"chirp": {
		Name:  "chirp",
		Steps: []Step{{On: 100 * time.Millisecond}},
	},
}

// phase is the buzzer sequencer state. Cancellation races (a new alert
// arriving mid-hold, stop during a step) are phase transitions, not nil
// checks on a shared timer handle.
type phase int

const (
	phaseIdle phase = iota
	phasePlaying
	phaseHolding
)

// Buzzer plays named on/off patterns on a single pin through the queue.
type Buzzer struct {
	queue   *Queue
	pin     int
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	phase    phase
	pattern  Pattern
	stopCh   chan struct{} // closed to cancel the active player
	patterns map[string]Pattern
	holdGen  int // invalidates stale hold timers
}

// NewBuzzer creates a buzzer sequencer for the given pin.
func NewBuzzer(queue *Queue, pin int, timeout time.Duration, log *zap.Logger) *Buzzer {
	if log == nil {
		log = zap.NewNop()
	}
	patterns := make(map[string]Pattern, len(builtinPatterns))
	for name, p := range builtinPatterns {
		patterns[name] = p
	}
	return &Buzzer{
		queue:    queue,
		pin:      pin,
		timeout:  timeout,
		log:      log,
		patterns: patterns,
	}
}

// SetHold sets the hold duration on a registered pattern. Takes effect
// on the next Start.
func (b *Buzzer) SetHold(name string, hold time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.patterns[name]
	if !ok {
		return fmt.Errorf("buzzer: unknown pattern %q", name)
	}
	p.Hold = hold
	b.patterns[name] = p
	return nil
}

// Pin returns the buzzer output pin.
func (b *Buzzer) Pin() int {
	return b.pin
}

// Register adds or replaces a named pattern.
func (b *Buzzer) Register(p Pattern) error {
	if p.Name == "" || len(p.Steps) == 0 {
		return fmt.Errorf("buzzer: pattern must have a name and at least one step")
	}
	b.mu.Lock()
	b.patterns[p.Name] = p
	b.mu.Unlock()
	return nil
}

// Start plays the named pattern. Starting the pattern that is already
// playing (and not in its hold phase) is a no-op; anything else cancels
// the current activity first.
func (b *Buzzer) Start(name string) error {
	b.mu.Lock()
	p, ok := b.patterns[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("buzzer: unknown pattern %q", name)
	}
	if b.phase == phasePlaying && b.pattern.Name == name {
		b.mu.Unlock()
		return nil
	}

	b.cancelLocked()
	b.phase = phasePlaying
	b.pattern = p
	stop := make(chan struct{})
	b.stopCh = stop
	b.mu.Unlock()

	b.log.Info("buzzer pattern start", zap.String("pattern", name))
	go b.play(p, stop)
	return nil
}

// Stop cancels any active pattern and hold timer and forces the pin low.
func (b *Buzzer) Stop() {
	b.mu.Lock()
	wasActive := b.phase != phaseIdle
	b.cancelLocked()
	b.mu.Unlock()

	if wasActive {
		b.log.Info("buzzer stop")
	}
	b.queue.EnqueueAsync(b.pin, 0, b.timeout)
}

// Hold is called when the alert clears. A pattern with zero hold stops
// immediately; otherwise it keeps playing for its hold duration and then
// auto-stops.
func (b *Buzzer) Hold() {
	b.mu.Lock()
	if b.phase != phasePlaying {
		b.mu.Unlock()
		return
	}
	if b.pattern.Hold <= 0 {
		b.mu.Unlock()
		b.Stop()
		return
	}

	b.phase = phaseHolding
	b.holdGen++
	gen := b.holdGen
	hold := b.pattern.Hold
	b.mu.Unlock()

	b.log.Info("buzzer hold", zap.Duration("hold", hold))
	time.AfterFunc(hold, func() {
		b.mu.Lock()
		stale := b.holdGen != gen || b.phase != phaseHolding
		b.mu.Unlock()
		if !stale {
			b.Stop()
		}
	})
}

// Active reports whether a pattern is playing or holding.
func (b *Buzzer) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase != phaseIdle
}

// ActivePattern returns the name of the active pattern, or "".
func (b *Buzzer) ActivePattern() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == phaseIdle {
		return ""
	}
	return b.pattern.Name
}

// cancelLocked invalidates the active player and hold timer. Caller holds mu.
func (b *Buzzer) cancelLocked() {
	if b.stopCh != nil {
		close(b.stopCh)
		b.stopCh = nil
	}
	b.holdGen++
	b.phase = phaseIdle
}

// play runs the step sequence until cancelled. While holding, a finished
// non-repeating sequence restarts from the first step.
func (b *Buzzer) play(p Pattern, stop chan struct{}) {
	for {
		for _, step := range p.Steps {
			if cancelled(stop) {
				return
			}
			b.queue.EnqueueAsync(b.pin, 1, b.timeout)
			if !sleepOrStop(step.On, stop) {
				return
			}
			b.queue.EnqueueAsync(b.pin, 0, b.timeout)
			if step.Off > 0 && !sleepOrStop(step.Off, stop) {
				return
			}
		}

		if p.Repeat {
			continue
		}

		b.mu.Lock()
		holding := b.phase == phaseHolding
		b.mu.Unlock()
		if !holding {
			// Sequence finished on its own; settle to idle unless a new
			// activation already took over.
			b.mu.Lock()
			if b.phase == phasePlaying && b.stopCh == stop {
				b.stopCh = nil
				b.phase = phaseIdle
			}
			b.mu.Unlock()
			b.queue.EnqueueAsync(b.pin, 0, b.timeout)
			return
		}
		// Hold phase restarts the sequence until the hold timer fires.
	}
}

func cancelled(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// sleepOrStop waits d and returns true, or returns false when cancelled.
func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		return !cancelled(stop)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
