// Package config loads the mixer-panel TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mixer-panel/internal/gpio"
	"github.com/sweeney/mixer-panel/internal/mixer"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/mixer-panel.toml"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is the daemon configuration. Matrix sizes are read once at startup.
type Config struct {
	ClockPeriodUs int64  `toml:"clock_period_us"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr"`
	Console       bool   `toml:"console"`

	GPIO   GPIO   `toml:"gpio"`
	Layout Layout `toml:"layout"`
	Serial Serial `toml:"serial"`
	MQTT   MQTT   `toml:"mqtt"`
	MIDI   MIDI   `toml:"midi"`
}

// GPIO assigns chip line offsets to the five link signals.
type GPIO struct {
	Chip    string `toml:"chip"`
	Clock   int    `toml:"clock"`
	Latch   int    `toml:"latch"`
	Load    int    `toml:"load"`
	DataIn  int    `toml:"data_in"`
	DataOut int    `toml:"data_out"`
}

// Layout maps button and LED bits to bus roles.
type Layout struct {
	Buttons          int  `toml:"buttons"`
	LEDs             int  `toml:"leds"`
	ProgramBase      int  `toml:"program_base"`
	PreviewBase      int  `toml:"preview_base"`
	ProgramSlots     int  `toml:"program_slots"`
	PreviewSlots     int  `toml:"preview_slots"`
	Transition       int  `toml:"transition"`
	Cut              int  `toml:"cut"`
	ProgramLEDBase   int  `toml:"program_led_base"`
	PreviewLEDBase   int  `toml:"preview_led_base"`
	ActiveLowButtons bool `toml:"active_low_buttons"`
}

// Serial is the UART status console. Empty Device disables it.
type Serial struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// MQTT is the network status channel. Empty Broker disables it.
type MQTT struct {
	Broker     string `toml:"broker"`
	ClientID   string `toml:"client_id"`
	Prefix     string `toml:"prefix"`
	BufferSize int    `toml:"buffer_size"`
}

// MIDI drives a software switcher. Empty Port disables it.
type MIDI struct {
	Port                 string `toml:"port"`
	ProgramChannel       uint8  `toml:"program_channel"`
	PreviewChannel       uint8  `toml:"preview_channel"`
	KeyBase              uint8  `toml:"key_base"`
	CutController        uint8  `toml:"cut_controller"`
	TransitionController uint8  `toml:"transition_controller"`
}

// Default returns the reference configuration: 1 ms clock, 24 buttons, 16 LEDs.
func Default() Config {
	l := mixer.DefaultLayout()
	pins := gpio.DefaultPinMap()
	return Config{
		ClockPeriodUs: 1000,
		LogLevel:      "info",
		HTTPAddr:      ":8080",
		Console:       true,
		GPIO: GPIO{
			Chip:    pins.Chip,
			Clock:   pins.Clock,
			Latch:   pins.Latch,
			Load:    pins.Load,
			DataIn:  pins.DataIn,
			DataOut: pins.DataOut,
		},
		Layout: Layout{
			Buttons:          l.Buttons,
			LEDs:             l.LEDs,
			ProgramBase:      l.ProgramButtons.Base,
			PreviewBase:      l.PreviewButtons.Base,
			ProgramSlots:     l.ProgramButtons.Count,
			PreviewSlots:     l.PreviewButtons.Count,
			Transition:       l.Transition,
			Cut:              l.Cut,
			ProgramLEDBase:   l.ProgramLEDBase,
			PreviewLEDBase:   l.PreviewLEDBase,
			ActiveLowButtons: true,
		},
		Serial: Serial{Baud: 9600},
		MQTT: MQTT{
			ClientID:   "mixer-panel",
			Prefix:     "studio/mixer-panel",
			BufferSize: 100,
		},
		MIDI: MIDI{
			ProgramChannel:       0,
			PreviewChannel:       1,
			KeyBase:              36,
			CutController:        20,
			TransitionController: 21,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, c.Validate()
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (Config, error) {
	c := Default()
	md, err := toml.Decode(text, &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sort.Strings(names)
	return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(names, ", "))
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// ClockPeriod returns the full shift-clock period.
func (c Config) ClockPeriod() time.Duration {
	return time.Duration(c.ClockPeriodUs) * time.Microsecond
}

// MixerLayout converts the layout section.
func (c Config) MixerLayout() mixer.Layout {
	l := c.Layout
	return mixer.Layout{
		Buttons:        l.Buttons,
		LEDs:           l.LEDs,
		ProgramButtons: mixer.Span{Base: l.ProgramBase, Count: l.ProgramSlots},
		PreviewButtons: mixer.Span{Base: l.PreviewBase, Count: l.PreviewSlots},
		Transition:     l.Transition,
		Cut:            l.Cut,
		ProgramLEDBase: l.ProgramLEDBase,
		PreviewLEDBase: l.PreviewLEDBase,
	}
}

// PinMap converts the gpio section.
func (c Config) PinMap() gpio.PinMap {
	return gpio.PinMap{
		Chip:    c.GPIO.Chip,
		Clock:   c.GPIO.Clock,
		Latch:   c.GPIO.Latch,
		Load:    c.GPIO.Load,
		DataIn:  c.GPIO.DataIn,
		DataOut: c.GPIO.DataOut,
	}
}

// Level parses LogLevel.
func (c Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ClockPeriodUs < 2 {
		return fmt.Errorf("%w: clock_period_us %d, want >= 2", ErrInvalid, c.ClockPeriodUs)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if err := c.MixerLayout().Validate(); err != nil {
		return fmt.Errorf("%w: layout: %v", ErrInvalid, err)
	}

	pins := map[int]string{}
	for _, p := range []struct {
		name   string
		offset int
	}{
		{"clock", c.GPIO.Clock},
		{"latch", c.GPIO.Latch},
		{"load", c.GPIO.Load},
		{"data_in", c.GPIO.DataIn},
		{"data_out", c.GPIO.DataOut},
	} {
		if p.offset < 0 {
			return fmt.Errorf("%w: gpio.%s %d is negative", ErrInvalid, p.name, p.offset)
		}
		if other, ok := pins[p.offset]; ok {
			return fmt.Errorf("%w: gpio.%s and gpio.%s share line %d", ErrInvalid, other, p.name, p.offset)
		}
		pins[p.offset] = p.name
	}

	if c.Serial.Device != "" && c.Serial.Baud <= 0 {
		return fmt.Errorf("%w: serial.baud %d", ErrInvalid, c.Serial.Baud)
	}
	if c.MQTT.Broker != "" && c.MQTT.Prefix == "" {
		return fmt.Errorf("%w: mqtt.prefix is empty", ErrInvalid)
	}

	m := c.MIDI
	if m.ProgramChannel > 15 || m.PreviewChannel > 15 {
		return fmt.Errorf("%w: midi channels must be 0..15", ErrInvalid)
	}
	if slots := max(c.Layout.ProgramSlots, c.Layout.PreviewSlots); int(m.KeyBase)+slots > 128 {
		return fmt.Errorf("%w: midi.key_base %d leaves no room for %d slots", ErrInvalid, m.KeyBase, slots)
	}
	if m.CutController > 127 || m.TransitionController > 127 {
		return fmt.Errorf("%w: midi controllers must be 0..127", ErrInvalid)
	}
	return nil
}
