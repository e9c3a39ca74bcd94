//go:build linux

package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RealReader reads the MCP3008 through the Linux IIO sysfs interface.
// Each channel appears as in_voltage<N>_raw under the device directory.
type RealReader struct {
	deviceDir string
	vref      float64
}

// DefaultDeviceDir is where the kernel exposes the first IIO device.
const DefaultDeviceDir = "/sys/bus/iio/devices/iio:device0"

// NewRealReader creates an ADC reader backed by the IIO device at dir.
// It probes channel 0 once so a missing overlay fails at startup rather
// than on the first poll tick.
func NewRealReader(dir string, vref float64) (*RealReader, error) {
	if dir == "" {
		dir = DefaultDeviceDir
	}
	r := &RealReader{deviceDir: dir, vref: vref}
	if _, err := r.ReadChannel(0); err != nil {
		return nil, fmt.Errorf("probe adc: %w", err)
	}
	return r, nil
}

// ReadChannel returns the latest sample from the given ADC channel.
func (r *RealReader) ReadChannel(channel int) (Sample, error) {
	if channel < 0 {
		return Sample{}, fmt.Errorf("adc: invalid channel %d", channel)
	}

	path := filepath.Join(r.deviceDir, fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return Sample{}, fmt.Errorf("read channel %d: %w", channel, err)
	}

	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Sample{}, fmt.Errorf("parse channel %d value %q: %w", channel, strings.TrimSpace(string(data)), err)
	}
	if raw < 0 || raw > MaxRaw {
		return Sample{}, fmt.Errorf("channel %d raw count out of range: %d", channel, raw)
	}

	return Sample{Raw: raw, Voltage: VoltageFor(raw, r.vref)}, nil
}

// Close releases ADC resources. The sysfs interface holds no state.
func (r *RealReader) Close() error {
	return nil
}
