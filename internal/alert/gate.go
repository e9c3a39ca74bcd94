package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/sensor"
)

// Contact is a notification recipient. This is a local copy to avoid
// importing internal/store from alert.
type Contact struct {
	Name  string
	Phone string
	URL   string // Notification service URL for this contact
}

// ContactDirectory supplies recipients and profile settings.
type ContactDirectory interface {
	// ProfileContact returns the owner's contact, or nil if unset.
	ProfileContact() (*Contact, error)

	// InternalContacts returns household/site recipients.
	InternalContacts() ([]Contact, error)

	// ExternalContacts returns emergency-service recipients.
	ExternalContacts() ([]Contact, error)
}

// Dispatcher sends the assembled notification.
type Dispatcher interface {
	// Send delivers the message to the contacts. Returns the count of
	// recipients that accepted it.
	Send(ctx context.Context, contacts []Contact, level Level, message string) (int, error)

	// Configured reports whether the dispatch channel is usable.
	Configured() bool
}

// AlertMarker marks the latest persisted alert of a level as notified.
// The operation is idempotent.
type AlertMarker interface {
	MarkLatestNotified(level Level) error
}

// PositionProvider supplies the current best-effort location.
type PositionProvider interface {
	Current() *gps.Position
}

// GateConfig tunes the notification gate.
type GateConfig struct {
	// PersistenceDelay is how long a non-normal level must persist
	// before the first dispatch attempt.
	PersistenceDelay time.Duration

	// Cooldown is the minimum spacing between dispatches.
	Cooldown time.Duration

	// ManualAddress is the configured fallback location used when no
	// live or cached fix exists.
	ManualAddress string

	// SendTimeout bounds a single dispatch attempt.
	SendTimeout time.Duration

	// OnDispatched, if set, is invoked after a successful dispatch with
	// the recipient count. Runs on the gate's timer goroutine.
	OnDispatched func(level Level, recipients int)
}

// DefaultGateConfig matches the shipped firmware timings.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		PersistenceDelay: 5 * time.Second,
		Cooldown:         5 * time.Minute,
		SendTimeout:      30 * time.Second,
	}
}

// DetectionState is a snapshot of the gate's episode tracking.
type DetectionState struct {
	Level          Level
	StartTime      time.Time
	Triggered      bool
	LastSent       time.Time
	DetectionCount int
}

// Gate decides whether and when a sustained non-normal alert level turns
// into a notification. Construct with NewGate and pass by reference;
// there is no package-level instance. All collaborator calls run on the
// gate's own timer goroutine, never on the poll tick.
type Gate struct {
	cfg        GateConfig
	dispatcher Dispatcher
	contacts   ContactDirectory
	positions  PositionProvider
	marker     AlertMarker
	log        *zap.Logger

	mu         sync.Mutex
	level      Level
	episodeGen int // bumped when an episode resets to normal
	startTime  time.Time
	triggered  bool
	lastSent   time.Time
	detections int
	timer      *time.Timer
	timerGen   int // invalidates cancelled persistence timers
}

// NewGate creates a notification gate.
func NewGate(cfg GateConfig, dispatcher Dispatcher, contacts ContactDirectory,
	positions PositionProvider, marker AlertMarker, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultGateConfig().SendTimeout
	}
	return &Gate{
		cfg:        cfg,
		dispatcher: dispatcher,
		contacts:   contacts,
		positions:  positions,
		marker:     marker,
		log:        log,
		level:      LevelNormal,
	}
}

// UpdateLevel is called on every alert-level change. A change to normal
// resets the episode (keeping the cooldown clock); a non-normal level
// restarts the persistence timer (restarted, never stacked).
func (g *Gate) UpdateLevel(level Level, a sensor.Assessment) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A pending timer never survives a level change.
	g.cancelTimerLocked()

	if level == LevelNormal {
		g.level = LevelNormal
		g.triggered = false
		g.startTime = time.Time{}
		g.episodeGen++
		g.log.Debug("notification gate reset")
		return
	}

	if g.level == LevelNormal {
		// New detection episode.
		g.startTime = time.Now()
		g.detections++
	}
	g.level = level

	g.timerGen++
	gen := g.timerGen
	episode := g.episodeGen
	g.timer = time.AfterFunc(g.cfg.PersistenceDelay, func() {
		g.fire(gen, episode, level, a)
	})
	g.log.Debug("persistence timer armed",
		zap.String("level", string(level)),
		zap.Duration("delay", g.cfg.PersistenceDelay))
}

func (g *Gate) cancelTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
}

// fire runs when the persistence timer elapses. Collaborator calls
// happen without the lock held; the episode generation guards the final
// commit against a concurrent reset.
func (g *Gate) fire(gen, episode int, level Level, a sensor.Assessment) {
	g.mu.Lock()
	if gen != g.timerGen {
		g.mu.Unlock()
		return // cancelled while queued
	}
	g.timer = nil

	if g.triggered {
		g.mu.Unlock()
		g.log.Debug("notification already sent this episode")
		return
	}
	if !g.lastSent.IsZero() && time.Since(g.lastSent) < g.cfg.Cooldown {
		remaining := g.cfg.Cooldown - time.Since(g.lastSent)
		g.mu.Unlock()
		g.log.Info("notification skipped: cooldown",
			zap.Duration("remaining", remaining))
		return
	}
	g.mu.Unlock()

	if !g.dispatcher.Configured() {
		g.log.Warn("notification skipped: dispatch channel not configured")
		return
	}

	contacts, err := g.recipients(level)
	if err != nil {
		g.log.Error("notification aborted: contact lookup", zap.Error(err))
		return
	}
	if len(contacts) == 0 {
		g.log.Warn("notification aborted: no contacts resolve",
			zap.String("level", string(level)))
		return
	}

	message := g.composeMessage(level, a)

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.SendTimeout)
	defer cancel()
	sent, err := g.dispatcher.Send(ctx, contacts, level, message)
	if err != nil {
		g.log.Error("notification dispatch failed", zap.Error(err))
		return
	}

	g.log.Info("notification dispatched",
		zap.String("level", string(level)),
		zap.Int("recipients", sent))

	g.mu.Lock()
	// Cooldown always advances; the episode flag only if the episode
	// that armed this timer is still running.
	g.lastSent = time.Now()
	if episode == g.episodeGen {
		g.triggered = true
	}
	g.mu.Unlock()

	if g.marker != nil {
		if err := g.marker.MarkLatestNotified(level); err != nil {
			g.log.Warn("mark alert notified", zap.Error(err))
		}
	}

	if g.cfg.OnDispatched != nil {
		g.cfg.OnDispatched(level, sent)
	}
}

// recipients selects contacts by level: LOW reaches the profile contact
// and internal contacts; CRITICAL additionally reaches external
// (emergency-service) contacts.
func (g *Gate) recipients(level Level) ([]Contact, error) {
	var out []Contact

	profile, err := g.contacts.ProfileContact()
	if err != nil {
		return nil, fmt.Errorf("profile contact: %w", err)
	}
	if profile != nil {
		out = append(out, *profile)
	}

	internal, err := g.contacts.InternalContacts()
	if err != nil {
		return nil, fmt.Errorf("internal contacts: %w", err)
	}
	out = append(out, internal...)

	if level == LevelCritical {
		external, err := g.contacts.ExternalContacts()
		if err != nil {
			return nil, fmt.Errorf("external contacts: %w", err)
		}
		out = append(out, external...)
	}

	return out, nil
}

// composeMessage assembles the alert text. Location priority: live fix,
// then cached last-known fix annotated with its age, then the configured
// manual address.
func (g *Gate) composeMessage(level Level, a sensor.Assessment) string {
	location := g.cfg.ManualAddress
	if location == "" {
		location = "location unknown"
	}
	if g.positions != nil {
		if pos := g.positions.Current(); pos != nil {
			location = fmt.Sprintf("%.6f,%.6f (±%.0fm)", pos.Latitude, pos.Longitude, pos.Accuracy)
			if pos.Source == gps.SourceCached {
				location += fmt.Sprintf(", last seen %v ago", pos.Age.Round(time.Second))
			}
		}
	}

	return fmt.Sprintf("GAS ALERT [%s] %s detected: %.0f ppm (risk %s, confidence %d%%). %s. Location: %s",
		level, a.GasType, a.MaxPPM, a.Risk, a.Confidence, a.Recommendation, location)
}

// State returns a snapshot of the episode tracking.
func (g *Gate) State() DetectionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return DetectionState{
		Level:          g.level,
		StartTime:      g.startTime,
		Triggered:      g.triggered,
		LastSent:       g.lastSent,
		DetectionCount: g.detections,
	}
}

// Shutdown cancels any pending persistence timer.
func (g *Gate) Shutdown() {
	g.mu.Lock()
	g.cancelTimerLocked()
	g.mu.Unlock()
}
