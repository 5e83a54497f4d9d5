package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/mixer-panel/internal/event"
	"github.com/sweeney/mixer-panel/internal/mixer"
)

var testTime = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func TestFormatPayload(t *testing.T) {
	e := event.Event{
		Time:    testTime,
		Type:    event.TypeProgram,
		Bus:     2,
		Program: 2,
		Preview: mixer.None,
	}

	payload, err := FormatPayload(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"panel":{"timestamp":"2026-02-02T22:18:12Z","event":"pgm","line":"pgm 2","bus":2,"program":2,"preview":null}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	tests := []struct {
		event    event.Event
		wantLine string
		wantBus  *int
	}{
		{event.Event{Type: event.TypeProgram, Bus: 4, Program: 4, Preview: 1}, "pgm 4", intPtr(4)},
		{event.Event{Type: event.TypePreview, Bus: mixer.None, Program: 4, Preview: mixer.None}, "pvw none", intPtr(-1)},
		{event.Event{Type: event.TypeCut, Bus: mixer.None, Program: 1, Preview: 4}, "cut", nil},
		{event.Event{Type: event.TypeTransition, Bus: mixer.None, Program: 4, Preview: 1}, "trans", nil},
	}

	for _, tt := range tests {
		t.Run(tt.wantLine, func(t *testing.T) {
			tt.event.Time = testTime
			payload, err := FormatPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}

			if parsed.Panel.Line != tt.wantLine {
				t.Errorf("line: got %s, want %s", parsed.Panel.Line, tt.wantLine)
			}
			if parsed.Panel.Event != string(tt.event.Type) {
				t.Errorf("event: got %s, want %s", parsed.Panel.Event, tt.event.Type)
			}
			switch {
			case tt.wantBus == nil && parsed.Panel.Bus != nil:
				t.Errorf("bus: got %d, want omitted", *parsed.Panel.Bus)
			case tt.wantBus != nil && (parsed.Panel.Bus == nil || *parsed.Panel.Bus != *tt.wantBus):
				t.Errorf("bus: got %v, want %d", parsed.Panel.Bus, *tt.wantBus)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestFormatState(t *testing.T) {
	payload, err := FormatState(event.Event{Time: testTime, Type: event.TypeCut, Program: 5, Preview: mixer.None})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"state":{"timestamp":"2026-02-02T22:18:12Z","program":5,"preview":null}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	e := event.Event{Time: time.Date(2026, 2, 2, 23, 18, 12, 0, loc), Type: event.TypeCut, Program: mixer.None, Preview: mixer.None}

	payload, _ := FormatPayload(e)
	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Panel.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Panel.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: "SHUTDOWN", Reason: "SIGTERM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: "STARTUP"})
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"STARTUP"}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"FAULT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "FAULT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Send(event.Event{Time: testTime, Type: event.TypeProgram, Bus: 1, Program: 1, Preview: mixer.None}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.EventCount() != 1 || len(f.Payloads) != 1 || len(f.States) != 1 {
		t.Fatalf("expected 1 event/payload/state, got %d/%d/%d", len(f.Events), len(f.Payloads), len(f.States))
	}
	if f.Events[0].Type != event.TypeProgram {
		t.Errorf("unexpected event type: %s", f.Events[0].Type)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.Send(event.Event{Type: event.TypeCut}); err == nil {
		t.Error("expected error")
	}
	if f.EventCount() != 0 {
		t.Error("event should not be recorded on error")
	}
}

func TestFakePublisherSystem(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Timestamp: testTime, Event: "STARTUP", Retained: true})

	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Fatalf("system events: %+v", f.SystemEvents)
	}

	f.PublishSystemError = errors.New("simulated error")
	if err := f.PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Send(event.Event{Type: event.TypeCut})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()
	if f.EventCount() != 0 || len(f.SystemEvents) != 0 || f.Closed || f.IsConnected() {
		t.Error("Reset should clear all recorded state")
	}
}

func TestFakePublisherIsEventSink(t *testing.T) {
	var _ event.Sink = NewFakePublisher()
	var _ event.Sink = (*RealPublisher)(nil)
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
}
