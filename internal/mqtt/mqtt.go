// Package mqtt publishes panel selection events with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/mixer-panel/internal/event"
	"github.com/sweeney/mixer-panel/internal/mixer"
)

// Topic suffixes under the configured prefix.
const (
	TopicEvents = "events" // every selection event, QoS 0
	TopicState  = "state"  // retained program/preview state, QoS 1
	TopicSystem = "system" // lifecycle events, QoS 1
)

// Publisher publishes panel events to MQTT.
type Publisher interface {
	// Send publishes a selection event and the resulting bus state.
	// Returns error if publishing fails (should not crash the process).
	Send(e event.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(e SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, fault).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "FAULT"
	Reason     string // e.g., "SIGTERM", fault text
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a selection event.
type Payload struct {
	Panel PanelPayload `json:"panel"`
}

// PanelPayload contains the selection event details.
// Bus indices are null when no slot is selected.
type PanelPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Line      string `json:"line"`
	Bus       *int   `json:"bus,omitempty"`
	Program   *int   `json:"program"`
	Preview   *int   `json:"preview"`
}

// StatePayload is the retained bus state.
type StatePayload struct {
	State BusState `json:"state"`
}

// BusState holds both bus selections.
type BusState struct {
	Timestamp string `json:"timestamp"`
	Program   *int   `json:"program"`
	Preview   *int   `json:"preview"`
}

func busJSON(b mixer.BusIndex) *int {
	if !b.Valid() {
		return nil
	}
	v := int(b)
	return &v
}

// FormatPayload creates the JSON payload for a selection event.
func FormatPayload(e event.Event) ([]byte, error) {
	p := PanelPayload{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Event:     string(e.Type),
		Line:      e.Line(),
		Program:   busJSON(e.Program),
		Preview:   busJSON(e.Preview),
	}
	if e.Type == event.TypeProgram || e.Type == event.TypePreview {
		// A deselect is reported as bus -1 so consumers can tell it from a cut.
		v := int(e.Bus)
		p.Bus = &v
	}
	return json.Marshal(Payload{Panel: p})
}

// FormatState creates the retained state payload after e was applied.
func FormatState(e event.Event) ([]byte, error) {
	return json.Marshal(StatePayload{State: BusState{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Program:   busJSON(e.Program),
		Preview:   busJSON(e.Preview),
	}})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(e SystemEvent) ([]byte, error) {
	if e.RawPayload != nil {
		return e.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     e.Event,
			Reason:    e.Reason,
		},
	}
	return json.Marshal(payload)
}
