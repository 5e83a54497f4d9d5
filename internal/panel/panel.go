// Package panel owns the shift-register link and the bus selector and runs
// them from a clock trigger.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mixer-panel/internal/bitframe"
	"github.com/sweeney/mixer-panel/internal/event"
	"github.com/sweeney/mixer-panel/internal/gpio"
	"github.com/sweeney/mixer-panel/internal/mixer"
	"github.com/sweeney/mixer-panel/internal/siso"
)

// Config sizes the panel.
type Config struct {
	Layout mixer.Layout

	// ActiveLowButtons is set when buttons pull their input to ground when pressed.
	ActiveLowButtons bool
}

// Stats is a point-in-time view of the panel.
// It is a value type and safe to use after the lock is released.
type Stats struct {
	Program mixer.BusIndex
	Preview mixer.BusIndex
	Buttons bitframe.Frame // last logical button frame
	LEDs    bitframe.Frame // frame being transmitted
	Steps   uint64         // half-cycles advanced
	Cycles  uint64         // complete protocol cycles
	Frames  uint64         // button frames processed
	Events  uint64         // selection events emitted
	Fault   string         // latched protocol fault, empty if none
}

// Panel couples one link and one selector. Advance and Run must be called
// from a single goroutine; Stats may be called from any goroutine.
type Panel struct {
	link     *siso.Link
	selector *mixer.Selector
	sink     event.Sink
	now      func() time.Time

	ioErrors int

	mu    sync.Mutex
	stats Stats
}

// New builds a panel driving pins. Selection events go to sink, which may be nil.
// sink.Send is called from the processing goroutine, so slow sinks should be
// wrapped in event.Async.
func New(pins gpio.Pins, cfg Config, sink event.Sink) (*Panel, error) {
	p := &Panel{sink: sink, now: time.Now}

	sel, err := mixer.NewSelector(cfg.Layout, mixer.Handlers{
		Program:    func(b mixer.BusIndex) { p.emit(event.TypeProgram, b) },
		Preview:    func(b mixer.BusIndex) { p.emit(event.TypePreview, b) },
		Cut:        func() { p.emit(event.TypeCut, mixer.None) },
		Transition: func() { p.emit(event.TypeTransition, mixer.None) },
		LEDs:       func(f bitframe.Frame) { p.link.SetOutputFrame(f) },
	})
	if err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}
	p.selector = sel

	link, err := siso.New(pins, siso.Config{
		InCount:        cfg.Layout.Buttons,
		OutCount:       cfg.Layout.LEDs,
		ActiveLowInput: cfg.ActiveLowButtons,
	})
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	link.SetContext(p)
	link.SetInputHandler(handleInput)
	p.link = link

	p.stats = Stats{
		Program: mixer.None,
		Preview: mixer.None,
		Buttons: bitframe.New(cfg.Layout.Buttons),
		LEDs:    bitframe.New(cfg.Layout.LEDs),
	}
	return p, nil
}

func handleInput(ctx any, buttons bitframe.Frame) {
	ctx.(*Panel).process(buttons)
}

func (p *Panel) process(buttons bitframe.Frame) {
	p.selector.Process(buttons)

	p.mu.Lock()
	p.stats.Program = p.selector.Program()
	p.stats.Preview = p.selector.Preview()
	p.stats.Buttons = buttons
	p.stats.LEDs = p.link.OutputFrame()
	p.stats.Frames++
	p.mu.Unlock()
}

func (p *Panel) emit(typ event.Type, bus mixer.BusIndex) {
	p.mu.Lock()
	p.stats.Events++
	p.mu.Unlock()

	if p.sink == nil {
		return
	}
	e := event.Event{
		Time:    p.now(),
		Type:    typ,
		Bus:     bus,
		Program: p.selector.Program(),
		Preview: p.selector.Preview(),
	}
	if err := p.sink.Send(e); err != nil {
		log.WithField("event", e.Line()).Warnln("event sink:", err)
	}
}

// Advance performs one clock half-cycle.
func (p *Panel) Advance() error {
	err := p.link.Advance()

	st := p.link.State()
	p.mu.Lock()
	p.stats.Steps++
	p.stats.Cycles = st.Cycles
	if fault := p.link.Fault(); fault != nil {
		p.stats.Fault = fault.Error()
	}
	p.mu.Unlock()

	return err
}

// Run advances the panel once per trigger until ctx is done or the link
// faults. GPIO errors are logged and the loop continues; a protocol fault is
// returned and requires Reset before running again.
func (p *Panel) Run(ctx context.Context, t *Trigger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			err := p.Advance()
			if err == nil {
				if p.ioErrors > 0 {
					log.WithField("errors", p.ioErrors).Infoln("gpio recovered")
					p.ioErrors = 0
				}
				continue
			}
			if errors.Is(err, siso.ErrProtocolFault) {
				log.WithFields(log.Fields{
					"iteration": p.link.State().Iteration,
				}).Errorln("link halted:", err)
				return err
			}
			p.ioErrors++
			if p.ioErrors == 1 {
				log.Warnln("gpio error:", err)
			}
		}
	}
}

// Reset returns the link, selector and counters to start state.
func (p *Panel) Reset() error {
	if err := p.link.Reset(); err != nil {
		return err
	}
	p.selector.Reset()
	p.ioErrors = 0

	p.mu.Lock()
	layout := p.selector.Layout()
	p.stats = Stats{
		Program: mixer.None,
		Preview: mixer.None,
		Buttons: bitframe.New(layout.Buttons),
		LEDs:    bitframe.New(layout.LEDs),
	}
	p.mu.Unlock()
	return nil
}

// ShowLEDs overrides the LED frame until the next selection change.
func (p *Panel) ShowLEDs(f bitframe.Frame) {
	p.link.SetOutputFrame(f)
	p.mu.Lock()
	p.stats.LEDs = p.link.OutputFrame()
	p.mu.Unlock()
}

// CycleLength returns the number of rising edges in one protocol cycle.
func (p *Panel) CycleLength() int { return p.link.CycleLength() }

// Layout returns the button/LED mapping.
func (p *Panel) Layout() mixer.Layout { return p.selector.Layout() }

// Stats returns a snapshot of the panel state.
func (p *Panel) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
