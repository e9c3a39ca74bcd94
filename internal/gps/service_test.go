package gps

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type scriptPort struct {
	r *io.PipeReader
}

func (p *scriptPort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *scriptPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *scriptPort) Close() error                { return p.r.Close() }

func testServiceConfig(lastKnown string) ServiceConfig {
	return ServiceConfig{
		Paths:         []string{"/dev/test0"},
		Baud:          9600,
		StaleAfter:    30 * time.Second,
		BackoffBase:   time.Millisecond,
		BackoffCap:    5 * time.Millisecond,
		MaxReconnects: 0, // unlimited
		LastKnownFile: lastKnown,
	}
}

func waitForService(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestServiceAcquiresFix(t *testing.T) {
	lastKnown := filepath.Join(t.TempDir(), "last.json")

	pr, pw := io.Pipe()
	opener := func(path string, baud int) (io.ReadWriteCloser, error) {
		return &scriptPort{r: pr}, nil
	}

	s := NewService(testServiceConfig(lastKnown), opener, nil)
	s.Start()
	defer s.Stop()

	go func() {
		pw.Write([]byte(nmea("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,") + "\r\n"))
		pw.Write([]byte(nmea("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W") + "\r\n"))
	}()

	if !waitForService(t, 2*time.Second, func() bool {
		p := s.Current()
		return p != nil && p.Source == SourceLive
	}) {
		t.Fatal("no live fix")
	}

	p := s.Current()
	if p.Satellites != 8 {
		t.Errorf("satellites = %d, want 8", p.Satellites)
	}
	if p.Latitude < 48.11 || p.Latitude > 48.12 {
		t.Errorf("latitude = %v", p.Latitude)
	}
	if p.Speed == 0 {
		// RMC may still be in flight; wait for it.
		waitForService(t, time.Second, func() bool { return s.Current().Speed > 0 })
	}

	st := s.CurrentStatus()
	if st.State != StateFix {
		t.Errorf("state = %v, want FIX", st.State)
	}
	if st.Device != "/dev/test0" {
		t.Errorf("device = %q", st.Device)
	}

	// The good fix must be promoted to disk.
	if !waitForService(t, 2*time.Second, func() bool {
		_, err := os.Stat(lastKnown)
		return err == nil
	}) {
		t.Fatal("last-known file never written")
	}
	cached, err := LoadLastKnown(lastKnown)
	if err != nil || cached == nil {
		t.Fatalf("load promoted fix: %v %v", cached, err)
	}
}

func TestServiceMalformedCountsAndContinues(t *testing.T) {
	s := NewService(testServiceConfig(""), nil, nil)

	now := time.Now()
	s.handleLine("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9*00", now) // bad checksum
	s.handleLine(nmea("GPGGA,123519,4807.038"), now)                      // truncated
	s.handleLine(nmea("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), now)

	if got := s.CurrentStatus().Malformed; got != 2 {
		t.Errorf("malformed = %d, want 2", got)
	}
	if p := s.Current(); p == nil {
		t.Fatal("valid sentence after garbage did not produce a fix")
	}
}

func TestServiceFixLost(t *testing.T) {
	s := NewService(testServiceConfig(""), nil, nil)
	now := time.Now()

	s.handleLine(nmea("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), now)
	if s.Current() == nil {
		t.Fatal("no fix")
	}

	// Quality drops to zero: live fix invalid, cached survives.
	s.handleLine(nmea("GPGGA,123520,,,,,0,03,,,M,,M,,"), now.Add(time.Second))

	p := s.Current()
	if p == nil {
		t.Fatal("cached fix lost with the live one")
	}
	if p.Source != SourceCached {
		t.Errorf("source = %v, want cached", p.Source)
	}
	if p.Age < 0 {
		t.Errorf("age = %v", p.Age)
	}
}

func TestServicePoorFixNotPromoted(t *testing.T) {
	s := NewService(testServiceConfig(""), nil, nil)

	// Quality 1 but only 3 satellites: live fix, never cached.
	s.handleLine(nmea("GPGGA,123519,4807.038,N,01131.000,E,1,03,6.0,545.4,M,46.9,M,,"), time.Now())

	if p := s.Current(); p == nil || p.Source != SourceLive {
		t.Fatalf("expected live fix, got %+v", p)
	}

	s.mu.Lock()
	s.fixValid = false
	cached := s.cached
	s.mu.Unlock()

	if cached != nil {
		t.Error("poor fix was promoted to last-known")
	}
	if s.Current() != nil {
		t.Error("poor fix survived as cached position")
	}
}

func TestServiceGSARefinesFix(t *testing.T) {
	s := NewService(testServiceConfig(""), nil, nil)
	now := time.Now()

	s.handleLine(nmea("GPGGA,123519,4807.038,N,01131.000,E,1,05,2.8,545.4,M,46.9,M,,"), now)
	s.handleLine(nmea("GPGSA,A,3,04,05,06,09,12,13,21,24,,,,,2.5,1.3,2.1"), now)

	p := s.Current()
	if p == nil {
		t.Fatal("no fix")
	}
	if p.HDOP != 1.3 {
		t.Errorf("hdop = %v, want refined 1.3", p.HDOP)
	}
	if p.Satellites != 8 {
		t.Errorf("satellites = %d, want raised to 8", p.Satellites)
	}
}

func TestServiceDormantAfterBudget(t *testing.T) {
	cfg := testServiceConfig("")
	cfg.MaxReconnects = 3

	opener := func(path string, baud int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}

	s := NewService(cfg, opener, nil)
	s.Start()
	defer s.Stop()

	if !waitForService(t, 2*time.Second, func() bool { return s.CurrentStatus().Dormant }) {
		t.Fatal("service never went dormant")
	}
	if st := s.CurrentStatus(); st.State != StateDisconnected {
		t.Errorf("state = %v, want DISCONNECTED", st.State)
	}
}

func TestServiceRestartWakesDormant(t *testing.T) {
	cfg := testServiceConfig("")
	cfg.MaxReconnects = 2

	var failing atomic.Bool
	failing.Store(true)
	pr, pw := io.Pipe()
	defer pw.Close()
	opener := func(path string, baud int) (io.ReadWriteCloser, error) {
		if failing.Load() {
			return nil, errors.New("no such device")
		}
		return &scriptPort{r: pr}, nil
	}

	s := NewService(cfg, opener, nil)
	s.Start()
	defer s.Stop()

	if !waitForService(t, 2*time.Second, func() bool { return s.CurrentStatus().Dormant }) {
		t.Fatal("service never went dormant")
	}

	failing.Store(false)
	s.Restart()

	if !waitForService(t, 2*time.Second, func() bool {
		st := s.CurrentStatus()
		return !st.Dormant && (st.State == StateAcquiring || st.State == StateFix)
	}) {
		t.Fatal("restart did not revive the service")
	}
}

func TestServiceRestoresCachedOnStart(t *testing.T) {
	lastKnown := filepath.Join(t.TempDir(), "last.json")
	if err := SaveLastKnown(lastKnown, Position{
		Latitude: 51.5, Longitude: -0.12, Satellites: 7, Time: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	cfg := testServiceConfig(lastKnown)
	cfg.MaxReconnects = 1
	opener := func(path string, baud int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}

	s := NewService(cfg, opener, nil)
	s.Start()
	defer s.Stop()

	p := s.Current()
	if p == nil {
		t.Fatal("cached position not restored")
	}
	if p.Source != SourceCached || p.Latitude != 51.5 {
		t.Errorf("restored = %+v", p)
	}
	if p.Age < 59*time.Minute {
		t.Errorf("age = %v, want about an hour", p.Age)
	}
}
