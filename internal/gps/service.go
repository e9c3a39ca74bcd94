package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// State is the position-service connection state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateAcquiring    State = "ACQUIRING"
	StateFix          State = "FIX"
)

// ErrNoDevice is returned when no candidate serial path opens.
var ErrNoDevice = errors.New("gps: no device found")

// PortOpener opens a serial device. Injectable for tests.
type PortOpener func(path string, baud int) (io.ReadWriteCloser, error)

// defaultOpener opens a real serial port.
func defaultOpener(path string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// ServiceConfig tunes the position service.
type ServiceConfig struct {
	Paths         []string // Candidate devices, tried in order
	Baud          int
	StaleAfter    time.Duration // Fix invalidated after this long without a sentence
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	MaxReconnects int
	LastKnownFile string
}

// DefaultServiceConfig matches a u-blox module on a Pi UART.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Paths:         []string{"/dev/ttyAMA0", "/dev/serial0", "/dev/ttyUSB0", "/dev/ttyACM0"},
		Baud:          9600,
		StaleAfter:    30 * time.Second,
		BackoffBase:   2 * time.Second,
		BackoffCap:    60 * time.Second,
		MaxReconnects: 10,
	}
}

// Service decodes location sentences from a serial GPS, gates fixes by
// quality, and keeps a disk-backed last-known location. It reconnects
// with exponential backoff until the attempt budget runs out, then
// stays dormant until Restart.
type Service struct {
	cfg  ServiceConfig
	open PortOpener
	log  *zap.Logger

	mu           sync.Mutex
	state        State
	device       string
	port         io.ReadWriteCloser
	fix          Position
	fixValid     bool
	lastSentence time.Time
	cached       *Position
	attempts     int
	dormant      bool
	malformed    int

	restartCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewService creates a position service. A nil opener uses the real
// serial transport.
func NewService(cfg ServiceConfig, open PortOpener, log *zap.Logger) *Service {
	if open == nil {
		open = defaultOpener
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultServiceConfig().BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultServiceConfig().BackoffCap
	}
	return &Service{
		cfg:       cfg,
		open:      open,
		log:       log,
		state:     StateDisconnected,
		restartCh: make(chan struct{}, 1),
	}
}

// Start loads the persisted last-known location and begins the connect
// and watchdog loops.
func (s *Service) Start() {
	if s.cfg.LastKnownFile != "" {
		cached, err := LoadLastKnown(s.cfg.LastKnownFile)
		if err != nil {
			s.log.Warn("load last-known position", zap.Error(err))
		} else if cached != nil {
			s.mu.Lock()
			s.cached = cached
			s.mu.Unlock()
			s.log.Info("restored last-known position",
				zap.Float64("lat", cached.Latitude),
				zap.Float64("lon", cached.Longitude),
				zap.Time("at", cached.Time))
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(2)
	go s.run()
	go s.watchdog()
}

// Stop shuts down the service. The cached last-known location survives
// on disk.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.port != nil {
		s.port.Close() // unblocks the reader
		s.port = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Restart resets the attempt budget and wakes the service if it went
// dormant after exhausting reconnects.
func (s *Service) Restart() {
	s.mu.Lock()
	s.attempts = 0
	wasDormant := s.dormant
	s.dormant = false
	s.mu.Unlock()

	if wasDormant {
		select {
		case s.restartCh <- struct{}{}:
		default:
		}
	}
}

// run is the connect/read/backoff loop.
func (s *Service) run() {
	defer s.wg.Done()

	for {
		if s.ctx.Err() != nil {
			return
		}

		port, device, err := s.connect()
		if err != nil {
			if !s.backoffWait(err) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.port = port
		s.device = device
		s.state = StateAcquiring
		s.attempts = 0
		s.mu.Unlock()
		s.log.Info("gps connected", zap.String("device", device))

		s.readLines(port)

		// Transport error or close: drop the port and go around. The
		// cached last-known location is untouched.
		s.mu.Lock()
		if s.port != nil {
			s.port.Close()
			s.port = nil
		}
		s.state = StateDisconnected
		s.fixValid = false
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		s.log.Warn("gps disconnected", zap.String("device", device))
	}
}

// connect tries each candidate path in order and returns the first that
// opens.
func (s *Service) connect() (io.ReadWriteCloser, string, error) {
	s.mu.Lock()
	s.state = StateConnecting
	s.mu.Unlock()

	for _, path := range s.cfg.Paths {
		port, err := s.open(path, s.cfg.Baud)
		if err != nil {
			s.log.Debug("gps probe failed", zap.String("device", path), zap.Error(err))
			continue
		}
		return port, path, nil
	}
	return nil, "", ErrNoDevice
}

// backoffWait sleeps out the exponential backoff for the current attempt
// count, or parks the service once the budget is exhausted. Returns
// false when the service is stopping.
func (s *Service) backoffWait(cause error) bool {
	s.mu.Lock()
	s.attempts++
	attempts := s.attempts
	s.state = StateDisconnected

	if s.cfg.MaxReconnects > 0 && attempts >= s.cfg.MaxReconnects {
		s.dormant = true
		s.mu.Unlock()
		s.log.Error("gps giving up until restart",
			zap.Int("attempts", attempts), zap.Error(cause))
		select {
		case <-s.restartCh:
			return true
		case <-s.ctx.Done():
			return false
		}
	}
	s.mu.Unlock()

	delay := s.cfg.BackoffBase << (attempts - 1)
	if delay > s.cfg.BackoffCap || delay <= 0 {
		delay = s.cfg.BackoffCap
	}
	s.log.Info("gps reconnect scheduled",
		zap.Duration("delay", delay), zap.Int("attempt", attempts), zap.Error(cause))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// readLines consumes complete lines from the port until error or close.
func (s *Service) readLines(port io.Reader) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		if s.ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleLine(line, time.Now())
	}
	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		s.log.Warn("gps read", zap.Error(err))
	}
}

// handleLine routes one sentence to its parser and folds the result into
// the tracked fix. Malformed sentences are counted and dropped; they
// never stop the loop.
func (s *Service) handleLine(line string, now time.Time) {
	if !checksumValid(line) {
		s.noteMalformed(line, errors.New("checksum mismatch"))
		return
	}

	switch sentenceType(line) {
	case sentenceGGA:
		data, err := parseGGA(line)
		if err != nil {
			s.noteMalformed(line, err)
			return
		}
		s.applyGGA(data, now)

	case sentenceRMC:
		data, err := parseRMC(line)
		if err != nil {
			s.noteMalformed(line, err)
			return
		}
		s.applyRMC(data, now)

	case sentenceGSA:
		data, err := parseGSA(line)
		if err != nil {
			s.noteMalformed(line, err)
			return
		}
		s.applyGSA(data, now)
	}
}

func (s *Service) noteMalformed(line string, err error) {
	s.mu.Lock()
	s.malformed++
	s.mu.Unlock()
	s.log.Debug("gps malformed sentence", zap.String("line", line), zap.Error(err))
}

func (s *Service) applyGGA(d GGAData, now time.Time) {
	var promote *Position

	s.mu.Lock()
	s.lastSentence = now

	if d.FixQuality < 1 {
		// Fix lost; keep satellite visibility for the status surface.
		s.fix.Satellites = d.Satellites
		s.fix.FixQuality = 0
		s.fix.Signal = SignalFor(0, d.Satellites, s.fix.HDOP)
		s.fixValid = false
		s.state = StateAcquiring
		s.mu.Unlock()
		return
	}

	s.fix.Latitude = d.Latitude
	s.fix.Longitude = d.Longitude
	s.fix.Altitude = d.Altitude
	s.fix.Satellites = d.Satellites
	s.fix.FixQuality = d.FixQuality
	s.fix.HDOP = d.HDOP
	s.fix.Accuracy = AccuracyFor(d.HDOP, d.Satellites)
	s.fix.Signal = SignalFor(d.FixQuality, d.Satellites, d.HDOP)
	s.fix.Time = now
	s.fix.Source = SourceLive
	s.fixValid = true
	s.state = StateFix

	if GoodFix(s.fix) {
		p := s.fix
		p.Source = SourceCached
		s.cached = &p
		promote = &p
	}
	s.mu.Unlock()

	if promote != nil && s.cfg.LastKnownFile != "" {
		// Best-effort, off the decode path.
		go func(p Position) {
			if err := SaveLastKnown(s.cfg.LastKnownFile, p); err != nil {
				s.log.Warn("persist last-known position", zap.Error(err))
			}
		}(*promote)
	}
}

func (s *Service) applyRMC(d RMCData, now time.Time) {
	if !d.Active {
		return
	}
	s.mu.Lock()
	s.lastSentence = now
	s.fix.Speed = d.SpeedKmh
	s.fix.Course = d.Course
	s.mu.Unlock()
}

func (s *Service) applyGSA(d GSAData, now time.Time) {
	s.mu.Lock()
	s.lastSentence = now
	if d.HDOP < 99 {
		s.fix.HDOP = d.HDOP
	}
	if d.Satellites > s.fix.Satellites {
		s.fix.Satellites = d.Satellites
	}
	s.fix.Accuracy = AccuracyFor(s.fix.HDOP, s.fix.Satellites)
	s.fix.Signal = SignalFor(s.fix.FixQuality, s.fix.Satellites, s.fix.HDOP)
	s.mu.Unlock()
}

// watchdog invalidates the live fix when no decoded sentence has arrived
// for StaleAfter. The cached last-known location is kept.
func (s *Service) watchdog() {
	defer s.wg.Done()

	if s.cfg.StaleAfter <= 0 {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.fixValid && !s.lastSentence.IsZero() &&
				time.Since(s.lastSentence) > s.cfg.StaleAfter {
				s.fixValid = false
				if s.state == StateFix {
					s.state = StateAcquiring
				}
				s.mu.Unlock()
				s.log.Warn("gps fix stale", zap.Duration("stale_after", s.cfg.StaleAfter))
				continue
			}
			s.mu.Unlock()
		}
	}
}

// Current returns the live fix when valid, else the cached last-known
// location annotated with its age, else nil.
func (s *Service) Current() *Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fixValid {
		p := s.fix
		p.Source = SourceLive
		return &p
	}
	if s.cached != nil {
		p := *s.cached
		p.Source = SourceCached
		p.Age = time.Since(p.Time)
		return &p
	}
	return nil
}

// Status is a snapshot of the service health for the status surface.
type Status struct {
	State           State
	Device          string
	Satellites      int
	Signal          SignalStrength
	LastSentenceAge time.Duration
	Malformed       int
	Attempts        int
	Dormant         bool
}

// CurrentStatus returns the service health snapshot.
func (s *Service) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      s.state,
		Device:     s.device,
		Satellites: s.fix.Satellites,
		Signal:     s.fix.Signal,
		Malformed:  s.malformed,
		Attempts:   s.attempts,
		Dormant:    s.dormant,
	}
	if !s.lastSentence.IsZero() {
		st.LastSentenceAge = time.Since(s.lastSentence)
	}
	return st
}
