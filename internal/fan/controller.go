// Package fan drives the exhaust-fan relays from the resolved fan state.
//
// A Controller owns the "current" state (the last state successfully written
// to the relays) and the transition log. In polled mode each Tick samples the
// inputs itself; in edge mode the caller feeds rising edges through
// HandleEdge and then ticks.
package fan

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/bathroom-fan/internal/clock"
	"github.com/sweeney/bathroom-fan/internal/gpio"
	"github.com/sweeney/bathroom-fan/internal/logic"
	"github.com/sweeney/bathroom-fan/internal/metrics"
	"github.com/sweeney/bathroom-fan/internal/mqtt"
	"github.com/sweeney/bathroom-fan/internal/status"
)

// Input names a sensor input.
type Input string

const (
	InputMotion   Input = "motion"
	InputOverride Input = "override"
)

// Edge is a rising edge seen on an input.
type Edge struct {
	Input Input
	At    time.Time
}

// RelayLevel maps a fan state to the relay drive level. The relay board is
// active-low: ON energizes the coil by pulling the line low.
func RelayLevel(s logic.State) gpio.Level {
	if s == logic.StateOn {
		return gpio.Low
	}
	return gpio.High
}

// Options configures a Controller. Port and Relays are required; nil
// collaborators fall back to defaults or no-ops.
type Options struct {
	Port        gpio.Port
	Relays      []int
	MotionPin   int
	OverridePin int

	// Poll makes Tick read the inputs itself instead of relying on edges.
	Poll bool

	Motion   *logic.MotionTracker
	Override *logic.OverrideTracker
	Schedule logic.Schedule

	Logger    *zap.Logger
	Publisher mqtt.Publisher
	Metrics   *metrics.Metrics
	Status    *status.Tracker
}

// Controller resolves the fan state and drives the relays.
type Controller struct {
	port        gpio.Port
	relays      []int
	motionPin   int
	overridePin int
	poll        bool

	motion   *logic.MotionTracker
	override *logic.OverrideTracker
	resolver *logic.Resolver

	log     *zap.Logger
	pub     mqtt.Publisher
	metrics *metrics.Metrics
	status  *status.Tracker

	mu           sync.Mutex
	current      logic.State
	transitions  logic.Transitions
	overrideHigh bool
}

// New creates a Controller. The fan is considered OFF until the first
// successful relay write.
func New(opts Options) *Controller {
	c := &Controller{
		port:        opts.Port,
		relays:      opts.Relays,
		motionPin:   opts.MotionPin,
		overridePin: opts.OverridePin,
		poll:        opts.Poll,
		motion:      opts.Motion,
		override:    opts.Override,
		log:         opts.Logger,
		pub:         opts.Publisher,
		metrics:     opts.Metrics,
		status:      opts.Status,
		current:     logic.StateOff,
	}
	if c.motion == nil {
		c.motion = logic.NewMotionTracker(logic.DefaultMotionStayOn, logic.DefaultLockout)
	}
	if c.override == nil {
		c.override = logic.NewOverrideTracker(logic.DefaultOverrideTime)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.pub == nil {
		c.pub = mqtt.NopPublisher{}
	}
	c.resolver = logic.NewResolver(c.motion, opts.Schedule, c.override)
	return c
}

// Setup configures the input and relay pins. Relays start low, as the board
// boots; the first Tick settles them.
func (c *Controller) Setup() error {
	c.log.Info("GPIO ready")

	for _, pin := range []int{c.motionPin, c.overridePin} {
		if err := c.port.SetupInput(pin, gpio.PullDown); err != nil {
			return fmt.Errorf("setup input pin %d: %w", pin, err)
		}
	}
	for _, pin := range c.relays {
		if err := c.port.SetupOutput(pin, gpio.Low); err != nil {
			return fmt.Errorf("setup relay pin %d: %w", pin, err)
		}
	}

	c.log.Info("Pins setup",
		zap.Int("motion_pin", c.motionPin),
		zap.Int("override_pin", c.overridePin),
		zap.Ints("relay_pins", c.relays),
	)
	c.log.Info("Starting fan program", zap.Bool("poll", c.poll))
	return nil
}

// Watch registers rising-edge handlers that forward edges, stamped by clk,
// to sink. The handlers never block: an edge is dropped when sink is full.
func (c *Controller) Watch(sink chan<- Edge, clk clock.Clock) error {
	watch := func(pin int, input Input) error {
		return c.port.OnRisingEdge(pin, func() {
			select {
			case sink <- Edge{Input: input, At: clk.Now()}:
			default:
				c.log.Warn("Dropped input edge", zap.String("input", string(input)))
			}
		})
	}
	if err := watch(c.motionPin, InputMotion); err != nil {
		return fmt.Errorf("watch motion pin %d: %w", c.motionPin, err)
	}
	if err := watch(c.overridePin, InputOverride); err != nil {
		return fmt.Errorf("watch override pin %d: %w", c.overridePin, err)
	}
	return nil
}

// HandleEdge records a rising edge on one of the inputs.
func (c *Controller) HandleEdge(e Edge) {
	c.metrics.Edge(string(e.Input))
	switch e.Input {
	case InputMotion:
		c.RecordMotion(e.At)
	case InputOverride:
		c.RecordToggle(e.At)
	default:
		c.log.Warn("Unknown input edge", zap.String("input", string(e.Input)))
	}
}

// RecordMotion marks motion at now.
func (c *Controller) RecordMotion(now time.Time) {
	c.motion.RecordMotion(now)
	c.log.Debug("Motion detected", zap.Time("at", now))
}

// RecordToggle registers an override button press at now and returns the
// latched state.
func (c *Controller) RecordToggle(now time.Time) logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toggle(now)
}

func (c *Controller) toggle(now time.Time) logic.State {
	latched := c.override.RecordToggle(now, c.current)
	c.log.Info("Override toggled",
		zap.String("latched", string(latched)),
		zap.Time("until", c.override.Until()),
	)
	return latched
}

// Tick runs one control cycle at now. On a read or relay write error the
// cycle is abandoned: the error is logged and returned, and neither the
// current state nor the transition log is updated.
func (c *Controller) Tick(now time.Time) (logic.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poll {
		if err := c.sample(now); err != nil {
			c.log.Error("Failed to read inputs", zap.Error(err))
			c.metrics.ReadError()
			return logic.Decision{}, err
		}
	}

	d := c.resolver.Resolve(now)

	if err := c.drive(d.State); err != nil {
		c.log.Error("Failed to drive relays", zap.String("state", string(d.State)), zap.Error(err))
		c.metrics.RelayError()
		return d, err
	}
	c.current = d.State
	c.metrics.SetState(d.State)

	if c.transitions.Observe(d.State) {
		c.log.Info("Fan has turned "+string(d.State), zap.String("reason", string(d.Reason)))
		c.metrics.Transition(d.State)
		if err := c.pub.Publish(logic.EventFor(d, now)); err != nil {
			c.log.Warn("Failed to publish fan event", zap.Error(err))
		}
	}

	if c.status != nil {
		c.status.Update(d, c.transitions.Counts(), c.motion.LastMotion(), c.override.Until())
	}
	return d, nil
}

// sample reads both inputs. Motion counts while the line is high; the
// override button counts once per low-to-high change between samples.
func (c *Controller) sample(now time.Time) error {
	motion, err := c.port.Read(c.motionPin)
	if err != nil {
		return fmt.Errorf("read motion pin %d: %w", c.motionPin, err)
	}
	pressed, err := c.port.Read(c.overridePin)
	if err != nil {
		return fmt.Errorf("read override pin %d: %w", c.overridePin, err)
	}

	if motion {
		c.motion.RecordMotion(now)
	}
	if pressed && !c.overrideHigh {
		c.metrics.Edge(string(InputOverride))
		c.toggle(now)
	}
	c.overrideHigh = pressed
	return nil
}

func (c *Controller) drive(s logic.State) error {
	level := RelayLevel(s)
	for _, pin := range c.relays {
		if err := c.port.Write(pin, level); err != nil {
			return fmt.Errorf("write relay pin %d %s: %w", pin, level, err)
		}
	}
	return nil
}

// Shutdown de-energizes the relays. It does not touch the transition log.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.drive(logic.StateOff); err != nil {
		c.log.Error("Failed to switch fan off on shutdown", zap.Error(err))
		return err
	}
	c.current = logic.StateOff
	c.metrics.SetState(logic.StateOff)
	c.log.Info("Relays released")
	return nil
}

// Current returns the state last written to the relays.
func (c *Controller) Current() logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Counts returns the logged transition counts.
func (c *Controller) Counts() logic.TransitionCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions.Counts()
}
