package adc

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted samples per channel.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted raw counts per channel. Each call to
	// ReadChannel consumes the next sample for that channel; when a
	// channel's script is exhausted the last sample repeats.
	Samples map[int][]int

	// VRef is the reference voltage used for derived voltages.
	VRef float64

	// ReadError, if set, will be returned by ReadChannel.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	index map[int]int
}

// NewFakeReader creates a FakeReader with the given per-channel scripts.
func NewFakeReader(vref float64, samples map[int][]int) *FakeReader {
	return &FakeReader{
		Samples: samples,
		VRef:    vref,
		index:   make(map[int]int),
	}
}

// ReadChannel returns the next scripted sample for the channel.
func (f *FakeReader) ReadChannel(channel int) (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	script, ok := f.Samples[channel]
	if !ok || len(script) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	raw := script[f.index[channel]]
	if f.index[channel] < len(script)-1 {
		f.index[channel]++
	}

	return Sample{Raw: raw, Voltage: VoltageFor(raw, f.VRef)}, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset rewinds all channel scripts.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	f.index = make(map[int]int)
	f.Closed = false
	f.mu.Unlock()
}
