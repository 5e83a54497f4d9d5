package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/mixer"
	"github.com/sweeney/mixer-panel/internal/panel"
)

func stats(program, preview mixer.BusIndex, frames uint64) panel.Stats {
	return panel.Stats{
		Program: program,
		Preview: preview,
		Buttons: bitframe.FromUint64(24, 0x000004),
		LEDs:    bitframe.FromUint64(16, 0x0402),
		Steps:   frames * 50,
		Cycles:  frames,
		Frames:  frames,
		Events:  2,
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{ClockPeriodUs: 1000, Buttons: 24, LEDs: 16, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.ClockPeriodUs != 1000 {
		t.Errorf("Config.ClockPeriodUs: got %d, want 1000", snap.Config.ClockPeriodUs)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Panel.Program != mixer.None || snap.Panel.Preview != mixer.None {
		t.Errorf("buses: got %v/%v, want none/none", snap.Panel.Program, snap.Panel.Preview)
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(stats(2, 1, 7))
	tr.SetDropped(3)

	snap := tr.Snapshot()
	if snap.Panel.Program != 2 {
		t.Errorf("Program: got %v, want 2", snap.Panel.Program)
	}
	if snap.Panel.Preview != 1 {
		t.Errorf("Preview: got %v, want 1", snap.Panel.Preview)
	}
	if !snap.Ready {
		t.Error("expected Ready=true once frames were processed")
	}
	if snap.Panel.Cycles != 7 {
		t.Errorf("Cycles: got %d, want 7", snap.Panel.Cycles)
	}
	if snap.Dropped != 3 {
		t.Errorf("Dropped: got %d, want 3", snap.Dropped)
	}
}

func TestUpdateBeforeFirstFrameNotReady(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(panel.Stats{Program: mixer.None, Preview: mixer.None, Steps: 10})

	if tr.Snapshot().Ready {
		t.Error("expected Ready=false before the first frame")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(stats(2, 1, 1))

	snap1 := tr.Snapshot()

	tr.Update(stats(1, 2, 2))

	if snap1.Panel.Program != 2 {
		t.Error("snapshot should be a copy; Program was modified")
	}
	if snap1.Panel.Preview != 1 {
		t.Error("snapshot should be a copy; Preview was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Panel:         stats(2, 1, 9),
		Ready:         true,
		Dropped:       4,
		StartTime:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:           time.Date(2026, 1, 1, 0, 1, 30, 0, time.UTC),
		MQTTConnected: true,
		Config:        Config{ClockPeriodUs: 1000, Buttons: 24, LEDs: 16, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s := parsed.Status

	if s.Program == nil || *s.Program != 2 {
		t.Errorf("Program: got %v, want 2", s.Program)
	}
	if s.Preview == nil || *s.Preview != 1 {
		t.Errorf("Preview: got %v, want 1", s.Preview)
	}
	if s.Buttons != "000000000000000000000100" {
		t.Errorf("Buttons: got %q", s.Buttons)
	}
	if s.LEDs != "0000010000000010" {
		t.Errorf("LEDs: got %q", s.LEDs)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", s.UptimeSeconds)
	}
	if s.Counters.Cycles != 9 || s.Counters.Dropped != 4 {
		t.Errorf("Counters: got %+v", s.Counters)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Config.Buttons != 24 || s.Config.LEDs != 16 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web JSON should carry no event/reason, got %q/%q", s.Event, s.Reason)
	}
	if s.Network != nil {
		t.Error("expected no network block")
	}
}

func TestFormatJSONNoneIsNull(t *testing.T) {
	snap := Snapshot{Panel: panel.Stats{Program: mixer.None, Preview: mixer.None}}

	data := FormatJSON(snap)

	if !strings.Contains(string(data), `"program": null`) {
		t.Errorf("expected program null, got %s", data)
	}
	if !strings.Contains(string(data), `"preview": null`) {
		t.Errorf("expected preview null, got %s", data)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Panel:     stats(3, mixer.None, 5),
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
	}
	snap.Panel.Fault = "siso protocol fault: iteration 99 out of range"

	data := FormatStatusEvent(snap, "FAULT", "protocol")

	if strings.Contains(string(data), "\n") {
		t.Error("status event should be compact JSON")
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Status.Event != "FAULT" {
		t.Errorf("Event: got %q, want FAULT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "protocol" {
		t.Errorf("Reason: got %q, want protocol", parsed.Status.Reason)
	}
	if parsed.Status.Fault == "" {
		t.Error("expected fault text")
	}
	if parsed.Status.Preview != nil {
		t.Errorf("Preview: got %v, want null", *parsed.Status.Preview)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(Snapshot{}, "STARTUP", "")

	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("expected reason omitted, got %s", data)
	}
	if strings.Contains(string(data), `"fault"`) {
		t.Errorf("expected fault omitted, got %s", data)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(stats(mixer.BusIndex(i%8), mixer.None, uint64(i)))
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetDropped(uint64(i))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}
