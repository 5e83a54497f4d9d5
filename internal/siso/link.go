// Package siso drives a serial-in/serial-out shift-register link: a parallel-in
// chain (buttons) and a serial-in chain (LEDs) sharing one clock, latch and
// load line. Each Advance call is one electrical half-cycle of the clock.
//
// A full protocol cycle is L = max(in, out) + 1 rising edges long:
//
//	i == 0        latch high, load low (outputs latched, inputs sampled in parallel)
//	i == 1        latch low, load high (serial shifting enabled)
//	1 <= i <= in  one input bit shifted into the LSB; frame complete at i == in
//	i >= L - out  one output bit driven, MSB first
//
// A GPIO error on a rising half abandons the cycle: the chips may already have
// shifted, so the link restarts at i == 0 with an empty input buffer and emits
// no frame for the partial cycle.
//
// This package has NO logging and no blocking calls.
package siso

import (
	"errors"
	"fmt"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/gpio"
)

// ErrProtocolFault marks a violated link invariant. A faulted link refuses to
// advance until Reset is called.
var ErrProtocolFault = errors.New("siso: protocol fault")

// InputHandler receives each completed input frame together with the link's context value.
type InputHandler func(ctx any, frame bitframe.Frame)

// Config sizes the link.
type Config struct {
	InCount  int // bits in the input chain
	OutCount int // bits in the output chain

	// ActiveLowInput inverts completed input frames, for inputs wired with pull-ups.
	ActiveLowInput bool
}

// State is a copy of the link's protocol state.
type State struct {
	ClockHigh  bool
	Iteration  int
	ShiftIn    bitframe.Frame
	PendingOut bitframe.Frame
	Cycles     uint64
	Aborted    uint64 // cycles abandoned after a GPIO error
}

// Link is the shift-register protocol driver.
type Link struct {
	pins      gpio.Pins
	cfg       Config
	length    int
	outOffset int

	clock     bool
	latch     bool
	load      bool
	iteration int
	shiftIn   bitframe.Frame
	out       bitframe.Frame
	cycles    uint64
	aborted   uint64

	handler InputHandler
	ctx     any

	fault error
}

// New creates a link driving pins. The pins must already be at their idle
// levels (clock, latch, data out low, load high).
func New(pins gpio.Pins, cfg Config) (*Link, error) {
	if cfg.InCount < 1 || cfg.InCount > bitframe.MaxWidth {
		return nil, fmt.Errorf("siso: input count %d out of range [1, %d]", cfg.InCount, bitframe.MaxWidth)
	}
	if cfg.OutCount < 1 || cfg.OutCount > bitframe.MaxWidth {
		return nil, fmt.Errorf("siso: output count %d out of range [1, %d]", cfg.OutCount, bitframe.MaxWidth)
	}

	length := max(cfg.InCount, cfg.OutCount) + 1
	return &Link{
		pins:      pins,
		cfg:       cfg,
		length:    length,
		outOffset: length - cfg.OutCount,
		load:      true,
		shiftIn:   bitframe.New(cfg.InCount),
		out:       bitframe.New(cfg.OutCount),
	}, nil
}

// CycleLength returns the number of rising edges in one protocol cycle.
func (l *Link) CycleLength() int { return l.length }

// SetOutputFrame sets the frame to transmit. It takes effect from the next
// output iteration; a frame set mid-transmission can tear for one cycle.
func (l *Link) SetOutputFrame(f bitframe.Frame) {
	l.out = bitframe.FromUint64(l.cfg.OutCount, f.Uint64())
}

// OutputFrame returns the frame being transmitted.
func (l *Link) OutputFrame() bitframe.Frame { return l.out }

// SetInputHandler sets the function called with each completed input frame.
// A nil handler disables notification.
func (l *Link) SetInputHandler(h InputHandler) { l.handler = h }

// InputHandler returns the current input handler.
func (l *Link) InputHandler() InputHandler { return l.handler }

// SetContext sets the value passed to the input handler.
func (l *Link) SetContext(ctx any) { l.ctx = ctx }

// Context returns the value passed to the input handler.
func (l *Link) Context() any { return l.ctx }

// State returns a copy of the protocol state.
func (l *Link) State() State {
	return State{
		ClockHigh:  l.clock,
		Iteration:  l.iteration,
		ShiftIn:    l.shiftIn,
		PendingOut: l.out,
		Cycles:     l.cycles,
		Aborted:    l.aborted,
	}
}

// Fault returns the latched protocol fault, or nil.
func (l *Link) Fault() error { return l.fault }

// Advance performs one half-cycle. The falling half only drops the clock; the
// rising half raises it and runs one protocol iteration.
func (l *Link) Advance() error {
	if l.fault != nil {
		return l.fault
	}

	if l.clock {
		if err := l.pins.SetClock(false); err != nil {
			return fmt.Errorf("clock low: %w", err)
		}
		l.clock = false
		return nil
	}

	if err := l.pins.SetClock(true); err != nil {
		l.abort()
		return fmt.Errorf("clock high: %w", err)
	}
	l.clock = true

	if err := l.step(); err != nil {
		if !errors.Is(err, ErrProtocolFault) {
			l.abort()
		}
		return err
	}

	l.iteration++
	if l.iteration == l.length {
		l.iteration = 0
		l.cycles++
	}
	return nil
}

func (l *Link) step() error {
	i := l.iteration
	if i < 0 || i >= l.length {
		return l.faultf("iteration %d outside [0, %d)", i, l.length)
	}

	if i == 0 {
		if err := l.setLatch(true); err != nil {
			return err
		}
		return l.setLoad(false)
	}

	if i == 1 {
		if err := l.setLatch(false); err != nil {
			return err
		}
		if err := l.setLoad(true); err != nil {
			return err
		}
	}
	if l.latch || !l.load {
		return l.faultf("iteration %d: latch=%v load=%v outside load phase", i, l.latch, l.load)
	}

	if i <= l.cfg.InCount {
		bit, err := l.pins.DataIn()
		if err != nil {
			return fmt.Errorf("data in: %w", err)
		}
		l.shiftIn = l.shiftIn.ShiftInLSB(bit)

		if i == l.cfg.InCount && l.handler != nil {
			frame := l.shiftIn
			if l.cfg.ActiveLowInput {
				frame = frame.Not()
			}
			l.handler(l.ctx, frame)
		}
	}

	outIndex := i - l.outOffset
	if outIndex >= 0 {
		if outIndex >= l.cfg.OutCount {
			return l.faultf("output index %d outside [0, %d)", outIndex, l.cfg.OutCount)
		}
		if err := l.pins.SetDataOut(l.out.Test(l.cfg.OutCount - outIndex - 1)); err != nil {
			return fmt.Errorf("data out: %w", err)
		}
	}
	return nil
}

// abort drops the partial cycle. The next rising half reloads the input chain.
func (l *Link) abort() {
	l.iteration = 0
	l.shiftIn = bitframe.New(l.cfg.InCount)
	l.aborted++
}

func (l *Link) setLatch(high bool) error {
	if err := l.pins.SetLatch(high); err != nil {
		return fmt.Errorf("latch: %w", err)
	}
	l.latch = high
	return nil
}

func (l *Link) setLoad(high bool) error {
	if err := l.pins.SetLoad(high); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	l.load = high
	return nil
}

func (l *Link) faultf(format string, args ...any) error {
	l.fault = fmt.Errorf("%w: %s", ErrProtocolFault, fmt.Sprintf(format, args...))
	return l.fault
}

// Reset returns the link and its lines to start state: iteration 0, clock low,
// latch low, load high, data out low, empty buffers. It clears a latched fault.
func (l *Link) Reset() error {
	if err := l.pins.SetClock(false); err != nil {
		return fmt.Errorf("reset clock: %w", err)
	}
	if err := l.pins.SetDataOut(false); err != nil {
		return fmt.Errorf("reset data out: %w", err)
	}
	l.clock = false
	if err := l.setLatch(false); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := l.setLoad(true); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	l.iteration = 0
	l.cycles = 0
	l.aborted = 0
	l.shiftIn = bitframe.New(l.cfg.InCount)
	l.out = bitframe.New(l.cfg.OutCount)
	l.fault = nil
	return nil
}
