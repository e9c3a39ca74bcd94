package actuator

import (
	"testing"
	"time"

	"github.com/sweeney/gasguard/internal/gpio"
)

const buzzerPin = 18

func testBuzzer(t *testing.T) (*Buzzer, *gpio.FakeWriter) {
	t.Helper()
	fake := gpio.NewFakeWriter()
	q := NewQueue(fake, QueueConfig{Spacing: time.Millisecond}, nil)
	t.Cleanup(q.ClearAll)
	b := NewBuzzer(q, buzzerPin, time.Second, nil)
	t.Cleanup(b.Stop)
	return b, fake
}

func TestBuzzerStartStop(t *testing.T) {
	b, fake := testBuzzer(t)

	if err := b.Start("critical"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !b.Active() {
		t.Fatal("buzzer not active after Start")
	}
	if b.ActivePattern() != "critical" {
		t.Errorf("pattern = %q, want critical", b.ActivePattern())
	}

	waitForWrites(t, fake, buzzerPin, 2) // at least one on/off cycle

	b.Stop()
	if b.Active() {
		t.Fatal("buzzer active after Stop")
	}

	// Stop forces the pin low.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fake.LastValue(buzzerPin) == 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Errorf("pin = %d after Stop, want 0", fake.LastValue(buzzerPin))
}

func TestBuzzerStartIdempotent(t *testing.T) {
	b, _ := testBuzzer(t)

	if err := b.Start("warning"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Same pattern again must not restart the player.
	if err := b.Start("warning"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if b.ActivePattern() != "warning" {
		t.Errorf("pattern = %q, want warning", b.ActivePattern())
	}

	// A different pattern takes over.
	if err := b.Start("critical"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if b.ActivePattern() != "critical" {
		t.Errorf("pattern = %q, want critical", b.ActivePattern())
	}
}

func TestBuzzerUnknownPattern(t *testing.T) {
	b, _ := testBuzzer(t)
	if err := b.Start("klaxon"); err == nil {
		t.Fatal("unknown pattern accepted")
	}
}

func TestBuzzerHoldZeroStopsImmediately(t *testing.T) {
	b, _ := testBuzzer(t)

	if err := b.Start("critical"); err != nil { // built-in: zero hold
		t.Fatalf("start: %v", err)
	}
	b.Hold()
	if b.Active() {
		t.Fatal("buzzer still active after zero-hold Hold")
	}
}

func TestBuzzerHoldKeepsPlayingThenStops(t *testing.T) {
	b, _ := testBuzzer(t)
	if err := b.SetHold("critical", 80*time.Millisecond); err != nil {
		t.Fatalf("set hold: %v", err)
	}

	if err := b.Start("critical"); err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Hold()

	if !b.Active() {
		t.Fatal("buzzer stopped at the start of the hold window")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !b.Active() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("buzzer never auto-stopped after hold")
}

func TestBuzzerHoldInterruptedByNewAlert(t *testing.T) {
	b, _ := testBuzzer(t)
	if err := b.SetHold("warning", time.Minute); err != nil {
		t.Fatalf("set hold: %v", err)
	}

	if err := b.Start("warning"); err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Hold()

	// A new alert during the hold takes over; the stale hold timer must
	// not kill it later.
	if err := b.Start("critical"); err != nil {
		t.Fatalf("start during hold: %v", err)
	}
	if b.ActivePattern() != "critical" {
		t.Errorf("pattern = %q, want critical", b.ActivePattern())
	}
	if !b.Active() {
		t.Fatal("buzzer not active after re-alert")
	}
}

func TestBuzzerHoldWhileIdleIsNoop(t *testing.T) {
	b, _ := testBuzzer(t)
	b.Hold()
	if b.Active() {
		t.Fatal("Hold on idle buzzer activated it")
	}
}

func TestBuzzerChirpSettlesToIdle(t *testing.T) {
	b, _ := testBuzzer(t)

	if err := b.Start("chirp"); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !b.Active() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("non-repeating pattern never settled to idle")
}

func TestBuzzerRegister(t *testing.T) {
	b, _ := testBuzzer(t)

	if err := b.Register(Pattern{}); err == nil {
		t.Fatal("empty pattern accepted")
	}
	if err := b.Register(Pattern{
		Name:  "double",
		Steps: []Step{{On: 10 * time.Millisecond, Off: 10 * time.Millisecond}, {On: 10 * time.Millisecond}},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := b.Start("double"); err != nil {
		t.Fatalf("start registered pattern: %v", err)
	}
}

func TestBuzzerPin(t *testing.T) {
	b, _ := testBuzzer(t)
	if b.Pin() != buzzerPin {
		t.Errorf("pin = %d, want %d", b.Pin(), buzzerPin)
	}
}
