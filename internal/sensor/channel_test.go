package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/gasguard/internal/adc"
)

func testParams() Params {
	return Params{
		Name:        "A",
		VRef:        5.0,
		Rl:          10000,
		CurveA:      1000,
		CurveB:      2.5,
		BaselineOhm: 10000,
		Sensitivity: 1.0,
		Preheat:     60 * time.Second,
	}
}

func TestResistanceFor(t *testing.T) {
	tests := []struct {
		name string
		vout float64
		want float64
	}{
		{"near ground clamps high", 0.005, MaxResistance},
		{"exactly at low guard", 0.01, MaxResistance},
		{"near rail clamps low", 4.95, MinResistance},
		{"exactly at high guard", 4.9, MinResistance},
		{"midpoint", 2.5, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResistanceFor(tt.vout, 5.0, 10000)
			if got != tt.want {
				t.Errorf("ResistanceFor(%v) = %v, want %v", tt.vout, got, tt.want)
			}
		})
	}
}

func TestResistanceForStaysInClamps(t *testing.T) {
	for vout := 0.02; vout < 4.9; vout += 0.01 {
		r := ResistanceFor(vout, 5.0, 10000)
		if r < MinResistance || r > MaxResistance {
			t.Fatalf("ResistanceFor(%v) = %v outside [%v, %v]", vout, r, MinResistance, MaxResistance)
		}
	}
}

func TestConcentrationForMonotonic(t *testing.T) {
	// Lower resistance means more gas on the power curve.
	prev := -1.0
	for r := 50000.0; r >= 1000; r -= 1000 {
		ppm := ConcentrationFor(r, 10000, 1000, 2.5)
		if prev >= 0 && ppm < prev {
			t.Fatalf("ppm decreased as resistance fell: R=%v ppm=%v prev=%v", r, ppm, prev)
		}
		prev = ppm
	}
}

func TestConcentrationForBaseline(t *testing.T) {
	// At the calibration baseline the ratio is 1, so ppm equals curve A.
	got := ConcentrationFor(10000, 10000, 1000, 2.5)
	if got != 1000 {
		t.Errorf("ppm at baseline = %v, want 1000", got)
	}
}

func TestConcentrationForDegenerate(t *testing.T) {
	if got := ConcentrationFor(10000, 0, 1000, 2.5); got != 0 {
		t.Errorf("zero baseline: got %v, want 0", got)
	}
	if got := ConcentrationFor(0, 10000, 1000, 2.5); got != 0 {
		t.Errorf("zero resistance: got %v, want 0", got)
	}
}

func TestChannelPreheatGating(t *testing.T) {
	start := time.Now()
	ch := NewChannel(testParams(), nil)
	ch.Init(start)

	if ch.Ready(start) {
		t.Fatal("channel ready immediately after init")
	}

	sample := adc.Sample{Raw: 512, Voltage: 2.5}
	r, err := ch.Read(sample, start.Add(10*time.Second))

	var preheat *PreheatError
	if !errors.As(err, &preheat) {
		t.Fatalf("want PreheatError, got %v", err)
	}
	if !errors.Is(err, ErrStillPreheating) {
		t.Fatal("PreheatError should unwrap to ErrStillPreheating")
	}
	if preheat.Remaining != 50*time.Second {
		t.Errorf("remaining = %v, want 50s", preheat.Remaining)
	}
	if r.PPM != 0 {
		t.Errorf("preheat reading ppm = %v, want 0", r.PPM)
	}
	if r.Raw != 512 {
		t.Errorf("preheat reading should carry raw value, got %d", r.Raw)
	}

	// Past the window the channel converts normally.
	after := start.Add(61 * time.Second)
	r, err = ch.Read(sample, after)
	if err != nil {
		t.Fatalf("read after preheat: %v", err)
	}
	if !r.Preheated {
		t.Error("reading not marked preheated")
	}
	if r.PPM <= 0 {
		t.Errorf("ppm = %v, want > 0", r.PPM)
	}
	if got := ch.LastValid(); got.PPM != r.PPM {
		t.Errorf("LastValid ppm = %v, want %v", got.PPM, r.PPM)
	}
}

func TestChannelReadBeforeInit(t *testing.T) {
	ch := NewChannel(testParams(), nil)
	if _, err := ch.Read(adc.Sample{Raw: 512, Voltage: 2.5}, time.Now()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
}

func TestChannelPPMClamp(t *testing.T) {
	start := time.Now()
	ch := NewChannel(testParams(), nil)
	ch.Init(start)

	// Near-rail voltage clamps resistance to the floor, which drives the
	// curve far past the ppm ceiling.
	r, err := ch.Read(adc.Sample{Raw: 1020, Voltage: 4.99}, start.Add(time.Minute+time.Second))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.PPM != MaxPPM {
		t.Errorf("ppm = %v, want clamp at %v", r.PPM, MaxPPM)
	}
}

func TestCalibrateBeforeReady(t *testing.T) {
	start := time.Now()
	ch := NewChannel(testParams(), nil)
	ch.Init(start)

	if err := ch.Calibrate(12000, start.Add(time.Second)); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
}

func TestCalibrate(t *testing.T) {
	start := time.Now()
	ch := NewChannel(testParams(), nil)
	ch.Init(start)
	ready := start.Add(2 * time.Minute)

	if err := ch.Calibrate(12000, ready); err != nil {
		t.Fatalf("calibrate: %v", err)
	}

	cal := ch.Calibration()
	if cal.BaselineOhm != 12000 {
		t.Errorf("baseline = %v, want 12000", cal.BaselineOhm)
	}
	if cal.ManualCount != 1 {
		t.Errorf("manual count = %d, want 1", cal.ManualCount)
	}
	if cal.Drift != 0 {
		t.Errorf("drift = %v, want reset to 0", cal.Drift)
	}

	if err := ch.Calibrate(-5, ready); err == nil {
		t.Fatal("negative baseline accepted")
	}
}

func TestAutoCalibrate(t *testing.T) {
	ch := NewChannel(testParams(), nil)
	ch.Init(time.Now().Add(-2 * time.Minute)) // already past preheat
	ch.calInterval = time.Millisecond

	// Constant 2.5V reads as 10kΩ against a 10kΩ load.
	samples := 0
	baseline, err := ch.AutoCalibrate(context.Background(), func() (adc.Sample, error) {
		samples++
		return adc.Sample{Raw: 512, Voltage: 2.5}, nil
	}, 5)
	if err != nil {
		t.Fatalf("auto-calibrate: %v", err)
	}
	if samples != 5 {
		t.Errorf("samples taken = %d, want 5", samples)
	}
	if baseline != 10000 {
		t.Errorf("baseline = %v, want 10000", baseline)
	}
	if got := ch.Calibration().BaselineOhm; got != 10000 {
		t.Errorf("committed baseline = %v, want 10000", got)
	}
}

func TestAutoCalibrateSampleError(t *testing.T) {
	ch := NewChannel(testParams(), nil)
	ch.Init(time.Now().Add(-2 * time.Minute))
	ch.calInterval = time.Millisecond

	fail := errors.New("bus fault")
	if _, err := ch.AutoCalibrate(context.Background(), func() (adc.Sample, error) {
		return adc.Sample{}, fail
	}, 3); !errors.Is(err, fail) {
		t.Fatalf("want sample error, got %v", err)
	}
}

func TestAutoCalibrateCancelled(t *testing.T) {
	ch := NewChannel(testParams(), nil)
	ch.Init(time.Now().Add(-2 * time.Minute))
	ch.calInterval = time.Hour // never ticks

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ch.AutoCalibrate(ctx, func() (adc.Sample, error) {
			return adc.Sample{Raw: 512, Voltage: 2.5}, nil
		}, 3)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto-calibrate did not observe cancellation")
	}
}
