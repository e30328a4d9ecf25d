// Package gpio provides pin-level GPIO access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Level is the electrical level of a pin.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Pull selects the bias applied to an input pin.
type Pull int

const (
	PullNone Pull = iota
	PullDown
	PullUp
)

// Port is the hardware I/O surface the fan controller drives.
// Pins are BCM line offsets.
type Port interface {
	// SetupInput requests pin as an input with the given bias.
	SetupInput(pin int, pull Pull) error

	// SetupOutput requests pin as an output driven to initial.
	SetupOutput(pin int, initial Level) error

	// Read returns true if an input pin is high.
	Read(pin int) (bool, error)

	// Write drives an output pin.
	Write(pin int, level Level) error

	// OnRisingEdge calls handler on every low-to-high transition of an input pin.
	// The handler runs on a goroutine owned by the port and must not block.
	OnRisingEdge(pin int, handler func()) error

	// Close releases GPIO resources.
	Close() error
}

var (
	// ErrUnknownPin is returned for pins that were not set up.
	ErrUnknownPin = errors.New("gpio: pin not set up")

	// ErrNotSupported is returned on platforms without the GPIO character device.
	ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")
)

// Default pin assignments (BCM numbering). Header pins in brackets.
const (
	DefaultPinRelay1   = 2  // [3]
	DefaultPinRelay2   = 3  // [5]
	DefaultPinMotion   = 4  // [7]
	DefaultPinOverride = 17 // [11]
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
