// Package config holds the daemon configuration: pins, timings, the
// fumigation schedule and outer-surface settings. Values come from
// Default(), optionally overlaid by a YAML file and BATHROOM_FAN_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/bathroom-fan/internal/gpio"
	"github.com/sweeney/bathroom-fan/internal/logging"
	"github.com/sweeney/bathroom-fan/internal/logic"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Input modes.
const (
	ModeEdge = "edge"
	ModePoll = "poll"
)

// MaxPoll is the slowest tick that still catches every fumigation pulse.
const MaxPoll = 30 * time.Second

// Pins uses BCM numbering.
type Pins struct {
	Motion   int   `yaml:"motion"`
	Override int   `yaml:"override"`
	Relays   []int `yaml:"relays"`
}

// Timing holds how long motion and override hold the fan.
type Timing struct {
	MotionStayOn time.Duration `yaml:"motion_stay_on"`
	Override     time.Duration `yaml:"override"`
}

// Lockout is the nightly range of hours (inclusive) during which motion is ignored.
type Lockout struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Window is one block of fumigation hours.
type Window struct {
	Days []string `yaml:"days"`
	From int      `yaml:"from"`
	To   int      `yaml:"to"`
}

// Fumigation describes the scheduled ventilation pulses.
type Fumigation struct {
	Minutes     []int    `yaml:"minutes"`
	HoldSeconds int      `yaml:"hold_seconds"`
	Windows     []Window `yaml:"windows"`
}

// MQTT configures event publishing. An empty broker disables it.
// WSBroker is the websocket URL the status page subscribes to: "=broker"
// derives it from Broker, "off" disables the live page.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	WSBroker  string        `yaml:"ws_broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Config is the full daemon configuration.
type Config struct {
	Mode       string        `yaml:"mode"`
	Chip       string        `yaml:"chip"`
	Poll       time.Duration `yaml:"poll"`
	Debounce   time.Duration `yaml:"debounce"`
	Pins       Pins          `yaml:"pins"`
	Timing     Timing        `yaml:"timing"`
	Lockout    Lockout       `yaml:"lockout"`
	Fumigation Fumigation    `yaml:"fumigation"`
	MQTT       MQTT          `yaml:"mqtt"`
	HTTPAddr   string        `yaml:"http"`
	LogFile    string        `yaml:"log_file"`
	LogLevel   string        `yaml:"log_level"`
}

// Default returns the stock configuration for the bathroom wiring.
func Default() Config {
	return Config{
		Mode:     ModeEdge,
		Chip:     gpio.DefaultChip,
		Poll:     time.Second,
		Debounce: 50 * time.Millisecond,
		Pins: Pins{
			Motion:   gpio.DefaultPinMotion,
			Override: gpio.DefaultPinOverride,
			Relays:   []int{gpio.DefaultPinRelay1, gpio.DefaultPinRelay2},
		},
		Timing: Timing{
			MotionStayOn: logic.DefaultMotionStayOn,
			Override:     logic.DefaultOverrideTime,
		},
		Lockout: Lockout{From: logic.DefaultLockout.From, To: logic.DefaultLockout.To},
		Fumigation: Fumigation{
			Minutes:     []int{0, 30},
			HoldSeconds: 30,
			Windows: []Window{
				{Days: []string{"mon", "tue", "wed", "thu", "fri"}, From: 7, To: 9},
				{Days: []string{"mon", "tue", "wed", "thu", "fri"}, From: 15, To: 22},
				{Days: []string{"sat", "sun"}, From: 7, To: 22},
			},
		},
		MQTT: MQTT{
			Broker:    "tcp://192.168.1.200:1883",
			WSBroker:  "=broker",
			ClientID:  "bathroom-fan",
			Heartbeat: 15 * time.Minute,
		},
		HTTPAddr: ":80",
		LogFile:  logging.DefaultPath,
		LogLevel: "info",
	}
}

// Load returns Default() overlaid with the YAML file at path. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto cfg. Keys missing from data keep their
// current values; lists present in data replace the current list.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvConfig   = "BATHROOM_FAN_CONFIG"
	EnvMode     = "BATHROOM_FAN_MODE"
	EnvBroker   = "BATHROOM_FAN_BROKER"
	EnvWSBroker = "BATHROOM_FAN_WS_BROKER"
	EnvHTTP     = "BATHROOM_FAN_HTTP"
	EnvLogFile  = "BATHROOM_FAN_LOG_FILE"
	EnvLogLevel = "BATHROOM_FAN_LOG_LEVEL"
)

// ApplyEnv overrides cfg with any BATHROOM_FAN_* variables that are set.
// Set-but-empty clears the value (e.g. BATHROOM_FAN_BROKER= disables MQTT).
func ApplyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	set(EnvMode, &cfg.Mode)
	set(EnvBroker, &cfg.MQTT.Broker)
	set(EnvWSBroker, &cfg.MQTT.WSBroker)
	set(EnvHTTP, &cfg.HTTPAddr)
	set(EnvLogFile, &cfg.LogFile)
	set(EnvLogLevel, &cfg.LogLevel)
}

// Validate checks the configuration for startup errors.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Mode != ModeEdge && c.Mode != ModePoll {
		fail("mode %q (want %s or %s)", c.Mode, ModeEdge, ModePoll)
	}
	if c.Poll <= 0 || c.Poll > MaxPoll {
		fail("poll %v must be in (0, %v]", c.Poll, MaxPoll)
	}
	if c.Debounce < 0 {
		fail("debounce %v is negative", c.Debounce)
	}
	if c.Timing.MotionStayOn <= 0 {
		fail("motion_stay_on %v must be positive", c.Timing.MotionStayOn)
	}
	if c.Timing.Override <= 0 {
		fail("override %v must be positive", c.Timing.Override)
	}
	if c.MQTT.Heartbeat < 0 {
		fail("heartbeat %v is negative", c.MQTT.Heartbeat)
	}

	if len(c.Pins.Relays) == 0 {
		fail("at least one relay pin is required")
	}
	seen := make(map[int]string)
	claim := func(pin int, role string) {
		if pin < 0 {
			fail("%s pin %d is negative", role, pin)
			return
		}
		if other, ok := seen[pin]; ok {
			fail("pin %d used for both %s and %s", pin, other, role)
			return
		}
		seen[pin] = role
	}
	claim(c.Pins.Motion, "motion")
	claim(c.Pins.Override, "override")
	for i, pin := range c.Pins.Relays {
		claim(pin, fmt.Sprintf("relay %d", i+1))
	}

	validHour := func(h int) bool { return h >= 0 && h <= 23 }
	if !validHour(c.Lockout.From) || !validHour(c.Lockout.To) {
		fail("lockout hours %d-%d out of range", c.Lockout.From, c.Lockout.To)
	}
	if c.Fumigation.HoldSeconds < 0 || c.Fumigation.HoldSeconds > 59 {
		fail("hold_seconds %d out of range", c.Fumigation.HoldSeconds)
	}
	for _, m := range c.Fumigation.Minutes {
		if m < 0 || m > 59 {
			fail("fumigation minute %d out of range", m)
		}
	}
	for i, w := range c.Fumigation.Windows {
		if !validHour(w.From) || !validHour(w.To) || w.From > w.To {
			fail("fumigation window %d hours %d-%d invalid", i+1, w.From, w.To)
		}
		if _, err := parseDays(w.Days); err != nil {
			fail("fumigation window %d: %v", i+1, err)
		}
	}

	return errors.Join(errs...)
}

// LockoutWindow returns the motion lockout as a logic value.
func (c Config) LockoutWindow() logic.Lockout {
	return logic.Lockout{From: c.Lockout.From, To: c.Lockout.To}
}

// Schedule converts the fumigation settings to a logic.Schedule.
func (c Config) Schedule() (logic.Schedule, error) {
	s := logic.Schedule{
		Minutes:     append([]int(nil), c.Fumigation.Minutes...),
		HoldSeconds: c.Fumigation.HoldSeconds,
	}
	for i, w := range c.Fumigation.Windows {
		days, err := parseDays(w.Days)
		if err != nil {
			return s, fmt.Errorf("fumigation window %d: %w", i+1, err)
		}
		s.Windows = append(s.Windows, logic.Window{Days: days, FromHour: w.From, ToHour: w.To})
	}
	return s, nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseDays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := dayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", n)
		}
		days = append(days, d)
	}
	return days, nil
}
