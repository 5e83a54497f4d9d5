//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives the shift-register lines on actual hardware using the Linux GPIO character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	clock   *gpiocdev.Line
	latch   *gpiocdev.Line
	load    *gpiocdev.Line
	dataOut *gpiocdev.Line
	dataIn  *gpiocdev.Line
}

// NewRealPins requests the five lines described by m.
// Outputs start at their idle levels: clock, latch and data out low, load high.
func NewRealPins(m PinMap) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(m.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", m.Chip, err)
	}

	r := &RealPins{chip: chip}
	outputs := []struct {
		name   string
		offset int
		start  int
		dst    **gpiocdev.Line
	}{
		{"clock", m.Clock, 0, &r.clock},
		{"latch", m.Latch, 0, &r.latch},
		{"load", m.Load, 1, &r.load},
		{"data out", m.DataOut, 0, &r.dataOut},
	}
	for _, o := range outputs {
		line, err := chip.RequestLine(o.offset, gpiocdev.AsOutput(o.start))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", o.name, o.offset, err)
		}
		*o.dst = line
	}

	// The input chain drives the data line push-pull, no bias needed.
	r.dataIn, err = chip.RequestLine(m.DataIn, gpiocdev.AsInput)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request data in pin %d: %w", m.DataIn, err)
	}

	return r, nil
}

func setLine(l *gpiocdev.Line, high bool) error {
	v := 0
	if high {
		v = 1
	}
	return l.SetValue(v)
}

// SetClock drives the clock line.
func (r *RealPins) SetClock(high bool) error { return setLine(r.clock, high) }

// SetLatch drives the latch line.
func (r *RealPins) SetLatch(high bool) error { return setLine(r.latch, high) }

// SetLoad drives the load line.
func (r *RealPins) SetLoad(high bool) error { return setLine(r.load, high) }

// SetDataOut drives the serial output line.
func (r *RealPins) SetDataOut(high bool) error { return setLine(r.dataOut, high) }

// DataIn samples the serial input line.
func (r *RealPins) DataIn() (bool, error) {
	v, err := r.dataIn.Value()
	if err != nil {
		return false, fmt.Errorf("read data in pin: %w", err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Output lines are reconfigured as inputs with pull-down before closing so the
// registers see a quiet bus while the daemon is not running.
func (r *RealPins) Close() error {
	var errs []error

	for _, l := range []*gpiocdev.Line{r.clock, r.latch, r.load, r.dataOut} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.Offset(), err))
		}
	}
	if r.dataIn != nil {
		if err := r.dataIn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data in pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
