// Package mixer contains the bus-selection logic of the switcher panel.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time).
// It consumes logical (active-high) button frames and produces LED frames.
package mixer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sweeney/mixer-panel/internal/bitframe"
)

// BusIndex is a selected slot on a bus, or None.
type BusIndex int

// None means no slot is selected.
const None BusIndex = -1

// Valid reports whether b names a slot.
func (b BusIndex) Valid() bool { return b >= 0 }

func (b BusIndex) String() string {
	if !b.Valid() {
		return "none"
	}
	return strconv.Itoa(int(b))
}

// Span is a contiguous run of bits in a frame.
type Span struct {
	Base  int
	Count int
}

// End returns the first index past the span.
func (s Span) End() int { return s.Base + s.Count }

func (s Span) contains(i int) bool { return i >= s.Base && i < s.End() }

func (s Span) overlaps(o Span) bool { return s.Base < o.End() && o.Base < s.End() }

// Layout maps buttons and LEDs to bus roles. Bit 0 is the first declared button/LED.
type Layout struct {
	Buttons int // width of the button frame
	LEDs    int // width of the LED frame

	ProgramButtons Span
	PreviewButtons Span
	Transition     int
	Cut            int

	// LED spans share the slot counts of the matching button spans.
	ProgramLEDBase int
	PreviewLEDBase int
}

// ErrInvalidLayout is returned by Validate.
var ErrInvalidLayout = errors.New("invalid layout")

// DefaultLayout returns the reference panel: 24 buttons (8 program, 8 preview,
// 2 reserved, transition, cut, 4 reserved) and 16 LEDs (8 preview, 8 program).
func DefaultLayout() Layout {
	return Layout{
		Buttons:        24,
		LEDs:           16,
		ProgramButtons: Span{Base: 0, Count: 8},
		PreviewButtons: Span{Base: 8, Count: 8},
		Transition:     18,
		Cut:            19,
		ProgramLEDBase: 8,
		PreviewLEDBase: 0,
	}
}

// ProgramLEDs returns the LED span of the program bus.
func (l Layout) ProgramLEDs() Span {
	return Span{Base: l.ProgramLEDBase, Count: l.ProgramButtons.Count}
}

// PreviewLEDs returns the LED span of the preview bus.
func (l Layout) PreviewLEDs() Span {
	return Span{Base: l.PreviewLEDBase, Count: l.PreviewButtons.Count}
}

// Validate checks that all spans fit their frames and do not overlap.
func (l Layout) Validate() error {
	if l.Buttons < 1 || l.Buttons > bitframe.MaxWidth {
		return fmt.Errorf("%w: %d buttons, want 1..%d", ErrInvalidLayout, l.Buttons, bitframe.MaxWidth)
	}
	if l.LEDs < 1 || l.LEDs > bitframe.MaxWidth {
		return fmt.Errorf("%w: %d LEDs, want 1..%d", ErrInvalidLayout, l.LEDs, bitframe.MaxWidth)
	}

	spans := []struct {
		name  string
		span  Span
		width int
	}{
		{"program buttons", l.ProgramButtons, l.Buttons},
		{"preview buttons", l.PreviewButtons, l.Buttons},
		{"program LEDs", l.ProgramLEDs(), l.LEDs},
		{"preview LEDs", l.PreviewLEDs(), l.LEDs},
	}
	for _, s := range spans {
		if s.span.Count < 1 || s.span.Base < 0 || s.span.End() > s.width {
			return fmt.Errorf("%w: %s [%d, %d) outside [0, %d)", ErrInvalidLayout, s.name, s.span.Base, s.span.End(), s.width)
		}
	}
	if l.ProgramButtons.overlaps(l.PreviewButtons) {
		return fmt.Errorf("%w: program and preview buttons overlap", ErrInvalidLayout)
	}
	if l.ProgramLEDs().overlaps(l.PreviewLEDs()) {
		return fmt.Errorf("%w: program and preview LEDs overlap", ErrInvalidLayout)
	}

	for _, b := range []struct {
		name  string
		index int
	}{
		{"transition", l.Transition},
		{"cut", l.Cut},
	} {
		if b.index < 0 || b.index >= l.Buttons {
			return fmt.Errorf("%w: %s button %d outside [0, %d)", ErrInvalidLayout, b.name, b.index, l.Buttons)
		}
		if l.ProgramButtons.contains(b.index) || l.PreviewButtons.contains(b.index) {
			return fmt.Errorf("%w: %s button %d inside a bus span", ErrInvalidLayout, b.name, b.index)
		}
	}
	if l.Transition == l.Cut {
		return fmt.Errorf("%w: transition and cut share button %d", ErrInvalidLayout, l.Cut)
	}
	return nil
}
