//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "bathroom-fan"

// RealPort drives GPIO lines on actual hardware using the Linux GPIO character device.
type RealPort struct {
	chip     *gpiocdev.Chip
	debounce time.Duration

	mu      sync.Mutex
	lines   map[int]*gpiocdev.Line
	inputs  map[int]Pull
	outputs map[int]bool
}

// NewRealPort opens the named chip. A positive debounce is applied to
// edge-watched inputs.
func NewRealPort(chipName string, debounce time.Duration) (*RealPort, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealPort{
		chip:     chip,
		debounce: debounce,
		lines:    make(map[int]*gpiocdev.Line),
		inputs:   make(map[int]Pull),
		outputs:  make(map[int]bool),
	}, nil
}

func biasOption(p Pull) gpiocdev.LineReqOption {
	switch p {
	case PullDown:
		return gpiocdev.WithPullDown
	case PullUp:
		return gpiocdev.WithPullUp
	default:
		return gpiocdev.WithBiasDisabled
	}
}

// SetupInput requests pin as an input with the given bias.
func (p *RealPort) SetupInput(pin int, pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line, err := p.chip.RequestLine(pin, gpiocdev.AsInput, biasOption(pull))
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", pin, err)
	}
	p.replace(pin, line)
	p.inputs[pin] = pull
	return nil
}

// SetupOutput requests pin as an output driven to initial.
func (p *RealPort) SetupOutput(pin int, initial Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line, err := p.chip.RequestLine(pin, gpiocdev.AsOutput(int(initial)))
	if err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	p.replace(pin, line)
	p.outputs[pin] = true
	return nil
}

// replace swaps in a newly requested line. Caller holds p.mu.
func (p *RealPort) replace(pin int, line *gpiocdev.Line) {
	if old, ok := p.lines[pin]; ok {
		old.Close()
	}
	p.lines[pin] = line
}

// Read returns true if the pin is high.
func (p *RealPort) Read(pin int) (bool, error) {
	p.mu.Lock()
	line, ok := p.lines[pin]
	p.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("read pin %d: %w", pin, ErrUnknownPin)
	}

	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

// Write drives an output pin.
func (p *RealPort) Write(pin int, level Level) error {
	p.mu.Lock()
	line, ok := p.lines[pin]
	isOutput := p.outputs[pin]
	p.mu.Unlock()
	if !ok || !isOutput {
		return fmt.Errorf("write pin %d: %w", pin, ErrUnknownPin)
	}

	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// OnRisingEdge re-requests an input pin with rising edge detection. The
// kernel delivers events to gpiocdev's watcher goroutine, which calls handler.
func (p *RealPort) OnRisingEdge(pin int, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pull, ok := p.inputs[pin]
	if !ok {
		return fmt.Errorf("watch pin %d: %w", pin, ErrUnknownPin)
	}

	// Edge detection and the handler can only be set at request time.
	if old, ok := p.lines[pin]; ok {
		old.Close()
		delete(p.lines, pin)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		biasOption(pull),
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	}
	if p.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(p.debounce))
	}

	line, err := p.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("watch pin %d: %w", pin, err)
	}
	p.lines[pin] = line
	return nil
}

// Close releases GPIO resources.
// Outputs are driven high first so active-low relays drop out, then every
// pin is reconfigured to input with pull-down (Pi boot defaults) before
// closing, leaving a clean state for shutdown/reboot.
func (p *RealPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for pin, line := range p.lines {
		if p.outputs[pin] {
			if err := line.SetValue(int(High)); err != nil {
				errs = append(errs, fmt.Errorf("release relay pin %d: %w", pin, err))
			}
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	p.lines = make(map[int]*gpiocdev.Line)
	p.outputs = make(map[int]bool)

	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	return errors.Join(errs...)
}
