// Package event carries bus-selection notifications from the panel to its
// status outputs (console, UART, MQTT, MIDI).
package event

import (
	"time"

	"github.com/sweeney/mixer-panel/internal/mixer"
)

// Type identifies a selection event.
type Type string

const (
	TypeProgram    Type = "pgm"
	TypePreview    Type = "pvw"
	TypeCut        Type = "cut"
	TypeTransition Type = "trans"
)

// Event is one selection change.
type Event struct {
	Time time.Time
	Type Type
	Bus  mixer.BusIndex // new selection for pgm/pvw; None otherwise

	// Program and Preview hold both buses after the event was applied.
	Program mixer.BusIndex
	Preview mixer.BusIndex
}

// Line renders the human-readable status line, e.g. "pgm 2", "pvw none", "cut".
func (e Event) Line() string {
	switch e.Type {
	case TypeProgram, TypePreview:
		return string(e.Type) + " " + e.Bus.String()
	default:
		return string(e.Type)
	}
}

// Sink receives events. Send may block; the panel never calls it directly
// from the processing loop (see Async).
type Sink interface {
	Send(e Event) error
	Close() error
}
