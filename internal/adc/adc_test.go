package adc

import (
	"errors"
	"math"
	"testing"
)

func TestVoltageFor(t *testing.T) {
	tests := []struct {
		name string
		raw  int
		vref float64
		want float64
	}{
		{"zero", 0, 5.0, 0},
		{"full scale", 1023, 5.0, 5.0},
		{"midpoint", 512, 5.0, 512.0 / 1023.0 * 5.0},
		{"negative clamps to zero", -10, 5.0, 0},
		{"overrange clamps to full scale", 2000, 5.0, 5.0},
		{"3v3 reference", 1023, 3.3, 3.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VoltageFor(tt.raw, tt.vref)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("VoltageFor(%d, %v) = %v, want %v", tt.raw, tt.vref, got, tt.want)
			}
		})
	}
}

func TestFakeReaderScript(t *testing.T) {
	f := NewFakeReader(5.0, map[int][]int{
		0: {100, 200, 300},
	})

	want := []int{100, 200, 300, 300, 300} // last sample repeats
	for i, w := range want {
		s, err := f.ReadChannel(0)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if s.Raw != w {
			t.Errorf("read %d: raw = %d, want %d", i, s.Raw, w)
		}
		if s.Voltage != VoltageFor(w, 5.0) {
			t.Errorf("read %d: voltage = %v, want %v", i, s.Voltage, VoltageFor(w, 5.0))
		}
	}
}

func TestFakeReaderUnconfiguredChannel(t *testing.T) {
	f := NewFakeReader(5.0, map[int][]int{0: {100}})
	if _, err := f.ReadChannel(7); err == nil {
		t.Fatal("expected error for unconfigured channel")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader(5.0, map[int][]int{0: {100}})
	f.ReadError = errors.New("bus fault")
	if _, err := f.ReadChannel(0); err == nil {
		t.Fatal("expected injected error")
	}

	f.ReadError = nil
	if _, err := f.ReadChannel(0); err != nil {
		t.Fatalf("read after clearing error: %v", err)
	}
}
