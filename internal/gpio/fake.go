package gpio

import (
	"fmt"
	"sync"
)

// WriteRecord is a single scripted-port write.
type WriteRecord struct {
	Pin   int
	Level Level
}

// FakePort is a test double that keeps pin levels in memory and records writes.
type FakePort struct {
	mu sync.Mutex

	inputs   map[int]bool
	pulls    map[int]Pull
	outputs  map[int]Level
	handlers map[int]func()

	// Writes contains every successful Write, in order.
	Writes []WriteRecord

	// ReadError, if set, will be returned by Read().
	ReadError error

	// WriteError, if set, will be returned by Write(). FailPin limits it to one pin.
	WriteError error
	FailPin    int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePort creates an empty FakePort.
func NewFakePort() *FakePort {
	return &FakePort{
		inputs:   make(map[int]bool),
		pulls:    make(map[int]Pull),
		outputs:  make(map[int]Level),
		handlers: make(map[int]func()),
		FailPin:  -1,
	}
}

// SetupInput registers pin as an input, initially low.
func (f *FakePort) SetupInput(pin int, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[pin] = false
	f.pulls[pin] = pull
	return nil
}

// SetupOutput registers pin as an output at initial.
func (f *FakePort) SetupOutput(pin int, initial Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[pin] = initial
	return nil
}

// Read returns the scripted level of an input pin.
func (f *FakePort) Read(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	v, ok := f.inputs[pin]
	if !ok {
		return false, fmt.Errorf("read pin %d: %w", pin, ErrUnknownPin)
	}
	return v, nil
}

// Write records the level of an output pin.
func (f *FakePort) Write(pin int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil && (f.FailPin < 0 || f.FailPin == pin) {
		return f.WriteError
	}
	if _, ok := f.outputs[pin]; !ok {
		return fmt.Errorf("write pin %d: %w", pin, ErrUnknownPin)
	}
	f.outputs[pin] = level
	f.Writes = append(f.Writes, WriteRecord{Pin: pin, Level: level})
	return nil
}

// OnRisingEdge stores handler; Press or SetInput fire it.
func (f *FakePort) OnRisingEdge(pin int, handler func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inputs[pin]; !ok {
		return fmt.Errorf("watch pin %d: %w", pin, ErrUnknownPin)
	}
	f.handlers[pin] = handler
	return nil
}

// SetInput sets the level of an input pin, firing the rising-edge handler on a low-to-high change.
func (f *FakePort) SetInput(pin int, high bool) {
	f.mu.Lock()
	was := f.inputs[pin]
	f.inputs[pin] = high
	h := f.handlers[pin]
	f.mu.Unlock()

	if h != nil && high && !was {
		h()
	}
}

// Press pulses an input pin high and back low.
func (f *FakePort) Press(pin int) {
	f.SetInput(pin, true)
	f.SetInput(pin, false)
}

// Output returns the current level of an output pin.
func (f *FakePort) Output(pin int) (Level, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.outputs[pin]
	return l, ok
}

// PullOf returns the bias an input was set up with.
func (f *FakePort) PullOf(pin int) Pull {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls[pin]
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
