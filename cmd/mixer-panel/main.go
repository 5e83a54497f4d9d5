// Command mixer-panel scans a video-switcher button panel over a shift-register
// link, drives its tally LEDs and reports program/preview changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/config"
	"github.com/sweeney/mixer-panel/internal/event"
	"github.com/sweeney/mixer-panel/internal/gpio"
	"github.com/sweeney/mixer-panel/internal/midiout"
	"github.com/sweeney/mixer-panel/internal/mqtt"
	"github.com/sweeney/mixer-panel/internal/panel"
	"github.com/sweeney/mixer-panel/internal/serialout"
	"github.com/sweeney/mixer-panel/internal/status"
	"github.com/sweeney/mixer-panel/internal/web"
)

// refreshInterval is how often the status tracker is updated from the panel.
const refreshInterval = 250 * time.Millisecond

var (
	configPath  string
	ledsPattern string
	ledsCycles  int

	mainCmd = &cobra.Command{
		Use:          "mixer-panel",
		Short:        "Video switcher button panel daemon",
		SilenceUsage: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Scan the panel and publish bus changes",
		RunE:  runPanel,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  printConfig,
	}
	ledsCmd = &cobra.Command{
		Use:   "leds",
		Short: "Lamp test: drive a fixed LED pattern",
		RunE:  runLamps,
	}
)

func main() {
	mainCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config path. The path to the TOML configuration file")
	ledsCmd.Flags().StringVarP(&ledsPattern, "pattern", "p", "", "LED bits to light, e.g. 0x00ff (default all on)")
	ledsCmd.Flags().IntVarP(&ledsCycles, "cycles", "n", 2000, "Number of protocol cycles to hold the pattern")
	mainCmd.AddCommand(runCmd, configCmd, ledsCmd)
	if err := mainCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configPath and applies its log level. A missing file at
// the default path falls back to the built-in defaults.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && configPath == config.DefaultPath {
		log.WithField("path", configPath).Warnln("config not found, using defaults")
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return config.Config{}, err
	}
	level, err := cfg.Level()
	if err != nil {
		return config.Config{}, err
	}
	log.SetLevel(level)
	return cfg, nil
}

func printConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return cfg.Write(cmd.OutOrStdout())
}

func panelConfig(cfg config.Config) panel.Config {
	return panel.Config{
		Layout:           cfg.MixerLayout(),
		ActiveLowButtons: cfg.Layout.ActiveLowButtons,
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		ClockPeriodUs: cfg.ClockPeriodUs,
		Buttons:       cfg.Layout.Buttons,
		LEDs:          cfg.Layout.LEDs,
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		SerialDevice:  cfg.Serial.Device,
		MIDIPort:      cfg.MIDI.Port,
	}
}

// outputs are the event sinks opened for a run. pub is nil when MQTT is disabled.
type outputs struct {
	sinks event.Multi
	pub   *mqtt.RealPublisher
}

// openOutputs opens every configured sink. On error the sinks opened so far
// are closed.
func openOutputs(cfg config.Config, console io.Writer) (*outputs, error) {
	o := &outputs{}
	fail := func(err error) (*outputs, error) {
		o.sinks.Close()
		return nil, err
	}

	if cfg.Console && console != nil {
		// Hide any Close method so closing the sinks leaves stdout open.
		o.sinks = append(o.sinks, event.NewConsole(struct{ io.Writer }{console}))
	}
	if cfg.Serial.Device != "" {
		s, err := serialout.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return fail(err)
		}
		o.sinks = append(o.sinks, s)
		log.WithField("device", cfg.Serial.Device).Infoln("serial console open")
	}
	if cfg.MIDI.Port != "" {
		m, err := midiout.Open(cfg.MIDI.Port, midiout.Mapping{
			ProgramChannel:       cfg.MIDI.ProgramChannel,
			PreviewChannel:       cfg.MIDI.PreviewChannel,
			KeyBase:              cfg.MIDI.KeyBase,
			CutController:        cfg.MIDI.CutController,
			TransitionController: cfg.MIDI.TransitionController,
		})
		if err != nil {
			return fail(err)
		}
		o.sinks = append(o.sinks, m)
		log.WithField("port", cfg.MIDI.Port).Infoln("midi output open")
	}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Prefix:     cfg.MQTT.Prefix,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fail(err)
		}
		o.pub = pub
		o.sinks = append(o.sinks, pub)
	}
	return o, nil
}

func runPanel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pins, err := gpio.NewRealPins(cfg.PinMap())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	out, err := openOutputs(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	queue := event.NewAsync(out.sinks, event.DefaultQueueSize)
	defer queue.Close()

	p, err := panel.New(pins, panelConfig(cfg), queue)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		panel:   p,
		tracker: tracker,
		queue:   queue,
		now:     time.Now,
	}
	// Assigned only when enabled so the interfaces stay nil otherwise.
	if out.pub != nil {
		d.pub = out.pub
		d.conn = out.pub
	}
	d.system("STARTUP", "")

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorln("http server:", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Infoln("http status server listening")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trig := panel.NewTrigger()
	go panel.Clock(ctx, cfg.ClockPeriod(), trig)

	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.WithFields(log.Fields{
		"clock":   cfg.ClockPeriod(),
		"buttons": cfg.Layout.Buttons,
		"leds":    cfg.Layout.LEDs,
		"cycle":   p.CycleLength(),
	}).Infoln("panel running")

	return d.run(trig, refresh.C, sigCh)
}

// daemon supervises a running panel: it keeps the status tracker current and
// reports lifecycle events.
type daemon struct {
	panel   *panel.Panel
	pub     mqtt.Publisher
	conn    mqtt.ConnectionStatus
	tracker *status.Tracker
	queue   interface{ Dropped() uint64 }
	now     func() time.Time
}

// run drives the panel from trig until a signal arrives or the link faults.
func (d *daemon) run(trig *panel.Trigger, refresh <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.panel.Run(ctx, trig) }()

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			cancel()
			<-done
			d.system("SHUTDOWN", signalName(s))
			return nil

		case err := <-done:
			d.system("FAULT", fmt.Sprint(err))
			return err

		case <-refresh:
			d.refresh()
		}
	}
}

func (d *daemon) refresh() {
	d.tracker.Update(d.panel.Stats())
	if d.queue != nil {
		d.tracker.SetDropped(d.queue.Dropped())
	}
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
}

// system publishes a retained lifecycle event carrying a full status snapshot.
func (d *daemon) system(name, reason string) {
	d.refresh()
	if d.pub == nil {
		return
	}
	snap := d.tracker.Snapshot()
	e := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      name,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, name, reason),
	}
	if err := d.pub.PublishSystem(e); err != nil {
		log.WithField("event", name).Warnln("failed to publish system event:", err)
		return
	}
	log.WithField("event", name).Infoln("published system event")
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

func runLamps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pattern, err := parsePattern(ledsPattern, cfg.Layout.LEDs)
	if err != nil {
		return err
	}

	pins, err := gpio.NewRealPins(cfg.PinMap())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	p, err := panel.New(pins, panelConfig(cfg), nil)
	if err != nil {
		return err
	}

	half := cfg.ClockPeriod() / 2
	ticker := time.NewTicker(half)
	defer ticker.Stop()

	log.WithFields(log.Fields{
		"pattern": pattern.String(),
		"cycles":  ledsCycles,
	}).Infoln("lamp test")
	return lampTest(p, pattern, ledsCycles, ticker.C)
}

// parsePattern reads an LED pattern. Empty lights every LED.
func parsePattern(s string, width int) (bitframe.Frame, error) {
	if s == "" {
		return bitframe.New(width).Not(), nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return bitframe.Frame{}, fmt.Errorf("led pattern %q: %w", s, err)
	}
	return bitframe.FromUint64(width, v), nil
}

// lampTest holds f on the LEDs for the given number of protocol cycles,
// advancing one half-cycle per tick. One extra cycle is run so the last
// shifted frame is latched.
func lampTest(p *panel.Panel, f bitframe.Frame, cycles int, tick <-chan time.Time) error {
	p.ShowLEDs(f)
	steps := (cycles + 1) * 2 * p.CycleLength()
	for i := 0; i < steps; i++ {
		<-tick
		if err := p.Advance(); err != nil {
			return fmt.Errorf("lamp test: %w", err)
		}
	}
	return nil
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
