// Command bathroom-fan drives the bathroom exhaust fan from a motion sensor,
// a fumigation schedule and a manual override button.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sweeney/bathroom-fan/internal/clock"
	"github.com/sweeney/bathroom-fan/internal/config"
	"github.com/sweeney/bathroom-fan/internal/fan"
	"github.com/sweeney/bathroom-fan/internal/gpio"
	"github.com/sweeney/bathroom-fan/internal/logging"
	"github.com/sweeney/bathroom-fan/internal/logic"
	"github.com/sweeney/bathroom-fan/internal/metrics"
	"github.com/sweeney/bathroom-fan/internal/mqtt"
	"github.com/sweeney/bathroom-fan/internal/status"
	"github.com/sweeney/bathroom-fan/internal/web"
)

// edgeBuffer is how many input edges may queue while a cycle runs.
const edgeBuffer = 16

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, printState, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, printState); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the YAML file, BATHROOM_FAN_* variables and
// finally any flags given explicitly on the command line.
func loadConfig(args []string) (config.Config, bool, error) {
	def := config.Default()
	f := def

	flags := flag.NewFlagSet("bathroom-fan", flag.ContinueOnError)
	path := flags.String("config", os.Getenv(config.EnvConfig), "YAML config file (empty for built-in defaults)")
	printState := flags.Bool("print-state", false, "Print input levels and exit")
	flags.StringVar(&f.Mode, "mode", def.Mode, "Input mode: edge or poll")
	flags.StringVar(&f.Chip, "chip", def.Chip, "GPIO character device")
	flags.DurationVar(&f.Poll, "poll", def.Poll, "Control cycle interval")
	flags.DurationVar(&f.Debounce, "debounce", def.Debounce, "Edge debounce period (edge mode)")
	flags.IntVar(&f.Pins.Motion, "pin-motion", def.Pins.Motion, "BCM pin for the PIR sensor")
	flags.IntVar(&f.Pins.Override, "pin-override", def.Pins.Override, "BCM pin for the override button")
	flags.StringVar(&f.MQTT.Broker, "broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	flags.StringVar(&f.MQTT.WSBroker, "ws-broker", def.MQTT.WSBroker, `MQTT websocket URL for the live status page ("=broker" derives from --broker, "off" disables)`)
	flags.DurationVar(&f.MQTT.Heartbeat, "heartbeat", def.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	flags.StringVar(&f.HTTPAddr, "http", def.HTTPAddr, "HTTP status address (empty to disable)")
	flags.StringVar(&f.LogFile, "log-file", def.LogFile, "Log file (empty for stdout only)")
	flags.StringVar(&f.LogLevel, "log-level", def.LogLevel, "Log level")

	if err := flags.Parse(args); err != nil {
		return def, false, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, false, err
	}
	config.ApplyEnv(&cfg)

	flags.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "mode":
			cfg.Mode = f.Mode
		case "chip":
			cfg.Chip = f.Chip
		case "poll":
			cfg.Poll = f.Poll
		case "debounce":
			cfg.Debounce = f.Debounce
		case "pin-motion":
			cfg.Pins.Motion = f.Pins.Motion
		case "pin-override":
			cfg.Pins.Override = f.Pins.Override
		case "broker":
			cfg.MQTT.Broker = f.MQTT.Broker
		case "ws-broker":
			cfg.MQTT.WSBroker = f.MQTT.WSBroker
		case "heartbeat":
			cfg.MQTT.Heartbeat = f.MQTT.Heartbeat
		case "http":
			cfg.HTTPAddr = f.HTTPAddr
		case "log-file":
			cfg.LogFile = f.LogFile
		case "log-level":
			cfg.LogLevel = f.LogLevel
		}
	})

	return cfg, *printState, cfg.Validate()
}

func run(cfg config.Config, printState bool) error {
	logger, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()
	defer logger.Sync()

	schedule, err := cfg.Schedule()
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	debounce := cfg.Debounce
	if cfg.Mode == config.ModePoll {
		debounce = 0
	}
	port, err := gpio.NewRealPort(cfg.Chip, debounce)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	if printState {
		return printInputs(os.Stdout, port, cfg.Pins.Motion, cfg.Pins.Override)
	}

	if cfg.Mode == config.ModePoll && cfg.Poll > time.Second {
		logger.Warn("Override presses shorter than the poll interval may be missed", zap.Duration("poll", cfg.Poll))
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	} else {
		logger.Info("MQTT disabled")
	}
	defer publisher.Close()

	m := newMetrics()

	sc := statusConfig(cfg)
	sc.WSBroker = resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker, logger)

	// Status tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), sc)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctl := fan.New(fan.Options{
		Port:        port,
		Relays:      cfg.Pins.Relays,
		MotionPin:   cfg.Pins.Motion,
		OverridePin: cfg.Pins.Override,
		Poll:        cfg.Mode == config.ModePoll,
		Motion:      logic.NewMotionTracker(cfg.Timing.MotionStayOn, cfg.LockoutWindow()),
		Override:    logic.NewOverrideTracker(cfg.Timing.Override),
		Schedule:    schedule,
		Logger:      logger,
		Publisher:   publisher,
		Metrics:     m,
		Status:      tracker,
	})
	if err := ctl.Setup(); err != nil {
		return fmt.Errorf("setup pins: %w", err)
	}

	edges := make(chan fan.Edge, edgeBuffer)
	if cfg.Mode == config.ModeEdge {
		if err := ctl.Watch(edges, clock.Real{}); err != nil {
			return fmt.Errorf("watch inputs: %w", err)
		}
	}

	tracker.SetMQTTConnected(mqttStatus.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("Failed to publish startup event", zap.Error(err))
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("HTTP status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	logger.Info("Started",
		zap.String("mode", cfg.Mode),
		zap.Duration("poll", cfg.Poll),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.MQTT.Heartbeat),
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, mqttStatus, tracker, logger, cfg.MQTT.Heartbeat, clock.Real{}, ticker.C, edges, sigCh)
}

// runLoop runs one control cycle immediately, then one per tick and one after
// every input edge, until a signal arrives. Relays are switched off before
// the SHUTDOWN event is published.
func runLoop(ctl *fan.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, logger *zap.Logger, heartbeat time.Duration, clk clock.Clock, tick <-chan time.Time, edges <-chan fan.Edge, sig <-chan os.Signal) error {
	now := clk.Now
	startTime := now()
	hb := logic.NewHeartbeat(startTime)

	refresh := func() {
		if tracker != nil && mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	cycle := func(t time.Time) {
		if _, err := ctl.Tick(t); err != nil {
			// Already logged by the controller; retry next cycle.
			return
		}
		refresh()

		hbData := hb.Check(t, heartbeat, ctl.Counts())
		if hbData == nil {
			return
		}
		logger.Info("Heartbeat",
			zap.Duration("uptime", hbData.Uptime),
			zap.Int("on", hbData.Counts.On),
			zap.Int("off", hbData.Counts.Off),
		)
		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if tracker != nil {
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := publisher.PublishSystem(hbEvent); err != nil {
			logger.Warn("Failed to publish heartbeat", zap.Error(err))
		}
	}

	cycle(startTime)

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			logger.Info("Shutting down", zap.String("signal", name))
			reason := name
			if err := ctl.Shutdown(); err != nil {
				// Relays may still be energized; say so in the retained event.
				reason = fmt.Sprintf("%s: %v", name, err)
			}

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    reason,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("Failed to publish shutdown event", zap.Error(err))
			}
			return nil

		case e := <-edges:
			ctl.HandleEdge(e)
			cycle(now())

		case <-tick:
			cycle(now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printInputs sets up the sensor pins and prints their current levels.
func printInputs(w io.Writer, port gpio.Port, motionPin, overridePin int) error {
	levels := make([]gpio.Level, 2)
	for i, pin := range []int{motionPin, overridePin} {
		if err := port.SetupInput(pin, gpio.PullDown); err != nil {
			return fmt.Errorf("setup input pin %d: %w", pin, err)
		}
		high, err := port.Read(pin)
		if err != nil {
			return fmt.Errorf("read pin %d: %w", pin, err)
		}
		if high {
			levels[i] = gpio.High
		}
	}
	fmt.Fprintf(w, "Motion: %s, Override: %s\n", levels[0], levels[1])
	return nil
}

// newMetrics creates the fan metrics with the build info collector added.
func newMetrics() *metrics.Metrics {
	m := metrics.New()
	m.Registry().MustRegister(collectors.NewBuildInfoCollector())
	return m
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or an
// unusable broker disables the live page.
func resolveWSBroker(ws, broker string, logger *zap.Logger) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		logger.Warn("Cannot derive websocket broker", zap.String("broker", broker), zap.Error(err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Mode:          cfg.Mode,
		PollMs:        cfg.Poll.Milliseconds(),
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		MotionStayOnS: int64(cfg.Timing.MotionStayOn.Seconds()),
		OverrideS:     int64(cfg.Timing.Override.Seconds()),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		MotionPin:     cfg.Pins.Motion,
		OverridePin:   cfg.Pins.Override,
		RelayPins:     cfg.Pins.Relays,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
