package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/mixer-panel/internal/mixer"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Program       *int         `json:"program"`
	Preview       *int         `json:"preview"`
	Buttons       string       `json:"buttons"`
	LEDs          string       `json:"leds"`
	Ready         bool         `json:"ready"`
	Fault         string       `json:"fault,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counters      CountersJSON `json:"counters"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountersJSON is the JSON representation of the panel counters.
type CountersJSON struct {
	Steps   uint64 `json:"steps"`
	Cycles  uint64 `json:"cycles"`
	Frames  uint64 `json:"frames"`
	Events  uint64 `json:"events"`
	Dropped uint64 `json:"dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ClockPeriodUs int64  `json:"clock_period_us"`
	Buttons       int    `json:"buttons"`
	LEDs          int    `json:"leds"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	SerialDevice  string `json:"serial_device,omitempty"`
	MIDIPort      string `json:"midi_port,omitempty"`
}

// busPtr maps None to a JSON null.
func busPtr(b mixer.BusIndex) *int {
	if !b.Valid() {
		return nil
	}
	v := int(b)
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.Panel
	return StatusInner{
		Program:       busPtr(st.Program),
		Preview:       busPtr(st.Preview),
		Buttons:       st.Buttons.String(),
		LEDs:          st.LEDs.String(),
		Ready:         snap.Ready,
		Fault:         st.Fault,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counters: CountersJSON{
			Steps:   st.Steps,
			Cycles:  st.Cycles,
			Frames:  st.Frames,
			Events:  st.Events,
			Dropped: snap.Dropped,
		},
		Config: ConfigJSON{
			ClockPeriodUs: snap.Config.ClockPeriodUs,
			Buttons:       snap.Config.Buttons,
			LEDs:          snap.Config.LEDs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			SerialDevice:  snap.Config.SerialDevice,
			MIDIPort:      snap.Config.MIDIPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
