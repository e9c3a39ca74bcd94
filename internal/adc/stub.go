//go:build !linux

package adc

import "errors"

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// DefaultDeviceDir is unused on non-Linux platforms.
const DefaultDeviceDir = ""

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(dir string, vref float64) (*RealReader, error) {
	return nil, errors.New("adc: not supported on this platform (requires Linux)")
}

// ReadChannel is not implemented on non-Linux platforms.
func (r *RealReader) ReadChannel(channel int) (Sample, error) {
	return Sample{}, errors.New("adc: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
