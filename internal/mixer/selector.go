package mixer

import "github.com/sweeney/mixer-panel/internal/bitframe"

// Handlers are notified synchronously from Process. Any field may be nil.
type Handlers struct {
	Program    func(BusIndex)
	Preview    func(BusIndex)
	Cut        func()
	Transition func()
	LEDs       func(bitframe.Frame)
}

// Selector tracks the program and preview buses from button edges.
type Selector struct {
	layout   Layout
	handlers Handlers

	last    bitframe.Frame
	program BusIndex
	preview BusIndex
	leds    bitframe.Frame
}

// NewSelector creates a selector with both buses at None.
func NewSelector(layout Layout, h Handlers) (*Selector, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	s := &Selector{layout: layout, handlers: h}
	s.Reset()
	return s, nil
}

// SetHandlers replaces the event handlers.
func (s *Selector) SetHandlers(h Handlers) { s.handlers = h }

// Reset returns both buses to None and forgets the previous button frame.
func (s *Selector) Reset() {
	s.last = bitframe.New(s.layout.Buttons)
	s.program = None
	s.preview = None
	s.leds = bitframe.New(s.layout.LEDs)
}

// Layout returns the button/LED mapping.
func (s *Selector) Layout() Layout { return s.layout }

// Program returns the program bus selection.
func (s *Selector) Program() BusIndex { return s.program }

// Preview returns the preview bus selection.
func (s *Selector) Preview() BusIndex { return s.preview }

// LEDs returns the most recently computed LED frame.
func (s *Selector) LEDs() bitframe.Frame { return s.leds }

// Process consumes a logical (active-high) button frame and applies, in order:
// program toggle, preview toggle, cut, transition. Only the lowest pressed slot
// per bus is honoured. Returns true if anything changed and the LED frame was
// recomputed.
func (s *Selector) Process(buttons bitframe.Frame) bool {
	buttons = bitframe.FromUint64(s.layout.Buttons, buttons.Uint64())
	edges := bitframe.RisingEdges(s.last, buttons)
	s.last = buttons

	changed := false

	if p, ok := firstSlot(edges, s.layout.ProgramButtons); ok {
		changed = true
		s.program = toggle(s.program, p)
		if s.handlers.Program != nil {
			s.handlers.Program(s.program)
		}
	}

	if p, ok := firstSlot(edges, s.layout.PreviewButtons); ok {
		changed = true
		s.preview = toggle(s.preview, p)
		if s.handlers.Preview != nil {
			s.handlers.Preview(s.preview)
		}
	}

	if edges.Test(s.layout.Cut) {
		changed = true
		s.program, s.preview = s.preview, s.program
		if s.handlers.Cut != nil {
			s.handlers.Cut()
		}
	}

	// TODO: defer the swap until a timed crossfade completes once the panel has a T-bar.
	if edges.Test(s.layout.Transition) {
		changed = true
		s.program, s.preview = s.preview, s.program
		if s.handlers.Transition != nil {
			s.handlers.Transition()
		}
	}

	if !changed {
		return false
	}

	s.leds = s.computeLEDs()
	if s.handlers.LEDs != nil {
		s.handlers.LEDs(s.leds)
	}
	return true
}

func (s *Selector) computeLEDs() bitframe.Frame {
	leds := bitframe.New(s.layout.LEDs)
	if s.preview.Valid() {
		leds = leds.Set(s.layout.PreviewLEDBase+int(s.preview), true)
	}
	if s.program.Valid() {
		leds = leds.Set(s.layout.ProgramLEDBase+int(s.program), true)
	}
	return leds
}

// firstSlot returns the lowest rising edge in span, relative to its base.
func firstSlot(edges bitframe.Frame, span Span) (int, bool) {
	i, ok := edges.FirstSet(span.Base, span.End())
	if !ok {
		return 0, false
	}
	return i - span.Base, true
}

// toggle deselects cur if slot is already selected, else selects slot.
func toggle(cur BusIndex, slot int) BusIndex {
	if cur == BusIndex(slot) {
		return None
	}
	return BusIndex(slot)
}
