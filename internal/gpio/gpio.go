// Package gpio provides GPIO output writing with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Writer drives GPIO output pins.
type Writer interface {
	// Write sets the pin to the given value (0 or 1). The timeout bounds
	// the hardware call.
	Write(pin, value int, timeout time.Duration) error

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering, reference wiring).
const (
	DefaultPinGreen  = 17
	DefaultPinYellow = 27
	DefaultPinRed    = 22
	DefaultPinBuzzer = 18
)
