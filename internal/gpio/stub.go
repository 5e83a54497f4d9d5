//go:build !linux

package gpio

import "errors"

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(m PinMap) (*RealPins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetClock is not implemented on non-Linux platforms.
func (r *RealPins) SetClock(bool) error { return errors.New("gpio: not supported") }

// SetLatch is not implemented on non-Linux platforms.
func (r *RealPins) SetLatch(bool) error { return errors.New("gpio: not supported") }

// SetLoad is not implemented on non-Linux platforms.
func (r *RealPins) SetLoad(bool) error { return errors.New("gpio: not supported") }

// SetDataOut is not implemented on non-Linux platforms.
func (r *RealPins) SetDataOut(bool) error { return errors.New("gpio: not supported") }

// DataIn is not implemented on non-Linux platforms.
func (r *RealPins) DataIn() (bool, error) { return false, errors.New("gpio: not supported") }

// Close is not implemented on non-Linux platforms.
func (r *RealPins) Close() error {
	return nil
}
