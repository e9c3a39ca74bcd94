//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives output pins through the Linux GPIO character device.
// Lines are requested lazily on first write and held for the process
// lifetime so repeated writes do not re-negotiate with the kernel.
type RealWriter struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealWriter creates a GPIO writer for actual Raspberry Pi hardware.
func NewRealWriter() (*RealWriter, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealWriter{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Write sets the pin to the given value.
// The kernel call itself is fast; the timeout guards the initial line
// request, which can block when another consumer holds the line.
func (w *RealWriter) Write(pin, value int, timeout time.Duration) error {
	if value != 0 && value != 1 {
		return fmt.Errorf("gpio: invalid value %d for pin %d", value, pin)
	}

	line, err := w.line(pin, value, timeout)
	if err != nil {
		return err
	}

	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

func (w *RealWriter) line(pin, initial int, timeout time.Duration) (*gpiocdev.Line, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if line, ok := w.lines[pin]; ok {
		return line, nil
	}

	type result struct {
		line *gpiocdev.Line
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := w.chip.RequestLine(pin, gpiocdev.AsOutput(initial))
		ch <- result{line, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("request pin %d: %w", pin, r.err)
		}
		w.lines[pin] = r.line
		return r.line, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("request pin %d: timeout after %v", pin, timeout)
	}
}

// Close drives all held pins low, reconfigures them to inputs to match
// Pi boot defaults, and releases the chip.
func (w *RealWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for pin, line := range w.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear pin %d: %w", pin, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	w.lines = make(map[int]*gpiocdev.Line)

	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
