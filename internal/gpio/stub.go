//go:build !linux

package gpio

import "time"

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

// NewRealPort returns ErrNotSupported on non-Linux platforms.
func NewRealPort(chipName string, debounce time.Duration) (*RealPort, error) {
	return nil, ErrNotSupported
}

// SetupInput is not implemented on non-Linux platforms.
func (p *RealPort) SetupInput(pin int, pull Pull) error {
	return ErrNotSupported
}

// SetupOutput is not implemented on non-Linux platforms.
func (p *RealPort) SetupOutput(pin int, initial Level) error {
	return ErrNotSupported
}

// Read is not implemented on non-Linux platforms.
func (p *RealPort) Read(pin int) (bool, error) {
	return false, ErrNotSupported
}

// Write is not implemented on non-Linux platforms.
func (p *RealPort) Write(pin int, level Level) error {
	return ErrNotSupported
}

// OnRisingEdge is not implemented on non-Linux platforms.
func (p *RealPort) OnRisingEdge(pin int, handler func()) error {
	return ErrNotSupported
}

// Close is a no-op on non-Linux platforms.
func (p *RealPort) Close() error {
	return nil
}
