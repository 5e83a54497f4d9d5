package mixer

import (
	"errors"
	"testing"

	"github.com/sweeney/mixer-panel/internal/bitframe"
)

// recorder captures handler calls in order.
type recorder struct {
	calls []string
	leds  []bitframe.Frame
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Program:    func(b BusIndex) { r.calls = append(r.calls, "pgm "+b.String()) },
		Preview:    func(b BusIndex) { r.calls = append(r.calls, "pvw "+b.String()) },
		Cut:        func() { r.calls = append(r.calls, "cut") },
		Transition: func() { r.calls = append(r.calls, "trans") },
		LEDs:       func(f bitframe.Frame) { r.leds = append(r.leds, f) },
	}
}

func setupSelector(t *testing.T, layout Layout) (*Selector, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := NewSelector(layout, rec.handlers())
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return s, rec
}

// press sends a frame with the given buttons held, then a frame with none held.
func press(s *Selector, buttons ...int) {
	f := bitframe.New(s.Layout().Buttons)
	for _, b := range buttons {
		f = f.Set(b, true)
	}
	s.Process(f)
	s.Process(bitframe.New(s.Layout().Buttons))
}

func assertBuses(t *testing.T, s *Selector, program, preview BusIndex) {
	t.Helper()
	if s.Program() != program {
		t.Errorf("program: got %s, want %s", s.Program(), program)
	}
	if s.Preview() != preview {
		t.Errorf("preview: got %s, want %s", s.Preview(), preview)
	}
}

func ledFrame(width int, bits ...int) bitframe.Frame {
	f := bitframe.New(width)
	for _, b := range bits {
		f = f.Set(b, true)
	}
	return f
}

func TestNewSelectorStartsAtNone(t *testing.T) {
	s, rec := setupSelector(t, DefaultLayout())
	assertBuses(t, s, None, None)
	if !s.LEDs().IsZero() || s.LEDs().Width() != 16 {
		t.Errorf("initial LEDs: %s", s.LEDs())
	}
	if len(rec.calls) != 0 {
		t.Errorf("unexpected calls: %v", rec.calls)
	}
}

func TestNewSelectorRejectsInvalidLayout(t *testing.T) {
	l := DefaultLayout()
	l.Cut = 3 // inside program span
	if _, err := NewSelector(l, Handlers{}); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)

	press(s, l.ProgramButtons.Base+2)
	assertBuses(t, s, 2, None)
	if want := ledFrame(16, l.ProgramLEDBase+2); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}

	press(s, l.PreviewButtons.Base+5)
	assertBuses(t, s, 2, 5)
	if want := ledFrame(16, l.ProgramLEDBase+2, l.PreviewLEDBase+5); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}

	press(s, l.Cut)
	assertBuses(t, s, 5, 2)
	if want := ledFrame(16, l.ProgramLEDBase+5, l.PreviewLEDBase+2); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}

	press(s, l.ProgramButtons.Base+5)
	assertBuses(t, s, None, 2)
	if want := ledFrame(16, l.PreviewLEDBase+2); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}

	wantCalls := []string{"pgm 2", "pvw 5", "cut", "pgm none"}
	if len(rec.calls) != len(wantCalls) {
		t.Fatalf("calls: got %v, want %v", rec.calls, wantCalls)
	}
	for i := range wantCalls {
		if rec.calls[i] != wantCalls[i] {
			t.Errorf("call %d: got %q, want %q", i, rec.calls[i], wantCalls[i])
		}
	}
	if len(rec.leds) != 4 {
		t.Errorf("expected 4 LED updates, got %d", len(rec.leds))
	}
}

func TestToggleLaw(t *testing.T) {
	l := DefaultLayout()
	s, _ := setupSelector(t, l)

	press(s, l.ProgramButtons.Base+3)
	assertBuses(t, s, 3, None)

	press(s, l.ProgramButtons.Base+3)
	assertBuses(t, s, None, None)

	press(s, l.ProgramButtons.Base+3)
	press(s, l.ProgramButtons.Base+6)
	assertBuses(t, s, 6, None)

	press(s, l.PreviewButtons.Base+0)
	press(s, l.PreviewButtons.Base+0)
	assertBuses(t, s, 6, None)
}

func TestCutLaw(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		name             string
		program, preview int // -1 = leave at None
	}{
		{"both selected", 1, 7},
		{"program only", 4, -1},
		{"preview only", -1, 0},
		{"neither", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupSelector(t, l)
			if tt.program >= 0 {
				press(s, l.ProgramButtons.Base+tt.program)
			}
			if tt.preview >= 0 {
				press(s, l.PreviewButtons.Base+tt.preview)
			}
			a, b := s.Program(), s.Preview()

			press(s, l.Cut)
			assertBuses(t, s, b, a)

			press(s, l.Cut)
			assertBuses(t, s, a, b)
		})
	}
}

func TestTransitionSwapsLikeCut(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)
	press(s, l.ProgramButtons.Base+1)
	press(s, l.PreviewButtons.Base+2)
	rec.calls = nil

	press(s, l.Transition)
	assertBuses(t, s, 2, 1)
	if len(rec.calls) != 1 || rec.calls[0] != "trans" {
		t.Errorf("calls: got %v, want [trans]", rec.calls)
	}
}

func TestCutAndTransitionSameFrameSwapTwice(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)
	press(s, l.ProgramButtons.Base+1)
	press(s, l.PreviewButtons.Base+2)
	rec.calls = nil

	press(s, l.Cut, l.Transition)
	assertBuses(t, s, 1, 2)
	if len(rec.calls) != 2 || rec.calls[0] != "cut" || rec.calls[1] != "trans" {
		t.Errorf("calls: got %v, want [cut trans]", rec.calls)
	}
}

func TestLowestIndexWins(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)

	all := bitframe.New(l.Buttons).
		Set(l.ProgramButtons.Base+6, true).
		Set(l.ProgramButtons.Base+2, true).
		Set(l.PreviewButtons.Base+7, true).
		Set(l.PreviewButtons.Base+4, true)
	s.Process(all)
	assertBuses(t, s, 2, 4)

	// Still held: no retrigger of the dropped presses.
	s.Process(all)
	assertBuses(t, s, 2, 4)
	if len(rec.calls) != 2 {
		t.Errorf("calls: got %v, want 2", rec.calls)
	}
}

func TestHeldButtonDoesNotRetrigger(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)

	held := bitframe.New(l.Buttons).Set(l.ProgramButtons.Base, true)
	for i := 0; i < 5; i++ {
		s.Process(held)
	}
	assertBuses(t, s, 0, None)
	if len(rec.calls) != 1 {
		t.Errorf("expected 1 call while held, got %v", rec.calls)
	}
}

func TestProcessedPressesReportChange(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)

	if s.Process(bitframe.New(l.Buttons)) {
		t.Error("empty frame should not report a change")
	}

	// Reserved buttons are ignored.
	reserved := bitframe.New(l.Buttons).Set(16, true).Set(17, true).Set(20, true).Set(23, true)
	if s.Process(reserved) {
		t.Error("reserved buttons should not report a change")
	}
	if len(rec.leds) != 0 {
		t.Errorf("LEDs should not be pushed without a change, got %d", len(rec.leds))
	}

	if !s.Process(reserved.Set(l.Cut, true)) {
		t.Error("cut should report a change")
	}
	if len(rec.leds) != 1 {
		t.Errorf("expected 1 LED push, got %d", len(rec.leds))
	}
}

func TestNilHandlers(t *testing.T) {
	l := DefaultLayout()
	s, err := NewSelector(l, Handlers{})
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	press(s, l.ProgramButtons.Base+1)
	press(s, l.PreviewButtons.Base+1)
	press(s, l.Cut)
	press(s, l.Transition)
	assertBuses(t, s, 1, 1)
}

func TestSetHandlersReplaces(t *testing.T) {
	l := DefaultLayout()
	s, rec := setupSelector(t, l)
	s.SetHandlers(Handlers{})
	press(s, l.Cut)
	if len(rec.calls) != 0 {
		t.Errorf("old handlers should not be called, got %v", rec.calls)
	}
}

func TestReset(t *testing.T) {
	l := DefaultLayout()
	s, _ := setupSelector(t, l)
	held := bitframe.New(l.Buttons).Set(l.ProgramButtons.Base+3, true)
	s.Process(held)
	s.Reset()
	assertBuses(t, s, None, None)

	// The previous frame is forgotten, so a still-held button is a fresh edge.
	s.Process(held)
	assertBuses(t, s, 3, None)
}

func TestMinimalLayout(t *testing.T) {
	l := Layout{
		Buttons:        4,
		LEDs:           2,
		ProgramButtons: Span{Base: 0, Count: 1},
		PreviewButtons: Span{Base: 1, Count: 1},
		Transition:     2,
		Cut:            3,
		ProgramLEDBase: 1,
		PreviewLEDBase: 0,
	}
	s, _ := setupSelector(t, l)

	press(s, 0)
	assertBuses(t, s, 0, None)
	if want := ledFrame(2, 1); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}
	press(s, 0)
	assertBuses(t, s, None, None)

	press(s, 1)
	press(s, 3)
	assertBuses(t, s, 0, None)
	if want := ledFrame(2, 1); !s.LEDs().Equal(want) {
		t.Errorf("LEDs: got %s, want %s", s.LEDs(), want)
	}
}

func TestProcessAdaptsFrameWidth(t *testing.T) {
	l := DefaultLayout()
	s, _ := setupSelector(t, l)
	wide := bitframe.New(32).Set(l.ProgramButtons.Base+1, true).Set(30, true)
	s.Process(wide)
	assertBuses(t, s, 1, None)
}

func TestBusIndexString(t *testing.T) {
	if None.String() != "none" {
		t.Errorf("None: got %q", None.String())
	}
	if BusIndex(7).String() != "7" {
		t.Errorf("7: got %q", BusIndex(7).String())
	}
	if None.Valid() || !BusIndex(0).Valid() {
		t.Error("Valid mismatch")
	}
}
