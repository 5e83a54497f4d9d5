// Package status provides a thread-safe status tracker for the mixer-panel daemon.
// It is read by the HTTP handlers and by the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mixer-panel/internal/mixer"
	"github.com/sweeney/mixer-panel/internal/panel"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	ClockPeriodUs int64
	Buttons       int
	LEDs          int
	Broker        string
	HTTPAddr      string
	SerialDevice  string
	MIDIPort      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Panel         panel.Stats
	Ready         bool
	Dropped       uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Panel:     panel.Stats{Program: mixer.None, Preview: mixer.None},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest panel stats. The panel is ready once it has
// processed its first button frame.
func (t *Tracker) Update(st panel.Stats) {
	t.mu.Lock()
	t.snap.Panel = st
	t.snap.Ready = st.Frames > 0
	t.mu.Unlock()
}

// SetDropped sets the number of events the sink queue has discarded.
func (t *Tracker) SetDropped(n uint64) {
	t.mu.Lock()
	t.snap.Dropped = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// Now is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
