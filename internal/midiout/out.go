package midiout

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/sweeney/mixer-panel/internal/event"
)

// Out is an event sink sending mapped messages to a MIDI output port.
type Out struct {
	mapper *Mapper
	send   func(midi.Message) error
	close  func() error
}

// NewOut creates a sink around an already opened send function.
func NewOut(m Mapping, send func(midi.Message) error, closeFn func() error) *Out {
	return &Out{mapper: NewMapper(m), send: send, close: closeFn}
}

// Open connects to the first output port whose name contains port
// (case-insensitive) using the rtmidi driver.
func Open(port string, m Mapping) (*Out, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list midi outputs: %w", err)
	}

	var found drivers.Out
	for _, o := range outs {
		if strings.Contains(strings.ToLower(o.String()), strings.ToLower(port)) {
			found = o
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("midi output %q not found", port)
	}

	send, err := midi.SendTo(found)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("open midi output %q: %w", found.String(), err)
	}
	log.WithField("port", found.String()).Infoln("midi: output opened")

	return NewOut(m, func(msg midi.Message) error { return send(msg) }, func() error {
		err := found.Close()
		drv.Close()
		return err
	}), nil
}

// Send writes the messages mapped from e.
func (o *Out) Send(e event.Event) error {
	var errs []error
	for _, msg := range o.mapper.Messages(e) {
		if err := o.send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send %s: %w", msg, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the port.
func (o *Out) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}
