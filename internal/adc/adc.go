// Package adc provides analog sample reading with hardware abstraction.
// The real implementation reads the Linux IIO sysfs interface exposed by
// the MCP3008 driver. The fake implementation allows testing without
// hardware.
package adc

// Sample is a single raw analog reading from one channel.
type Sample struct {
	Raw     int     // 10-bit count, 0-1023
	Voltage float64 // Derived from Raw against the reference voltage
}

// Reader reads raw analog samples.
type Reader interface {
	// ReadChannel returns the latest sample from the given ADC channel.
	// Fails with a transport error if the hardware is unavailable.
	ReadChannel(channel int) (Sample, error)

	// Close releases ADC resources.
	Close() error
}

// MaxRaw is the full-scale raw count of the 10-bit converter.
const MaxRaw = 1023

// VoltageFor converts a raw count to volts against the given reference.
// Counts outside 0..1023 are clamped before conversion.
func VoltageFor(raw int, vref float64) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > MaxRaw {
		raw = MaxRaw
	}
	return float64(raw) / float64(MaxRaw) * vref
}
