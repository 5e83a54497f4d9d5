// Package midiout forwards bus selections to a software switcher over MIDI.
package midiout

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/sweeney/mixer-panel/internal/event"
	"github.com/sweeney/mixer-panel/internal/mixer"
)

// Mapping assigns MIDI messages to panel events.
// Slot k on a bus is note KeyBase+k on that bus's channel.
type Mapping struct {
	ProgramChannel       uint8
	PreviewChannel       uint8
	KeyBase              uint8
	CutController        uint8
	TransitionController uint8
}

// Mapper turns events into MIDI messages. Selecting a slot sends NoteOn for
// it and NoteOff for the slot it replaces. Cut and transition move the held
// notes to the swapped slots on both channels, then send a control change
// with value 127. Each channel holds at most one note.
type Mapper struct {
	m       Mapping
	program mixer.BusIndex
	preview mixer.BusIndex
}

// NewMapper creates a mapper with both buses unselected.
func NewMapper(m Mapping) *Mapper {
	return &Mapper{m: m, program: mixer.None, preview: mixer.None}
}

func (p *Mapper) key(b mixer.BusIndex) uint8 {
	return p.m.KeyBase + uint8(b)
}

func (p *Mapper) reselect(ch uint8, old, cur mixer.BusIndex) []midi.Message {
	if old == cur {
		return nil
	}
	var msgs []midi.Message
	if old.Valid() {
		msgs = append(msgs, midi.NoteOff(ch, p.key(old)))
	}
	if cur.Valid() {
		msgs = append(msgs, midi.NoteOn(ch, p.key(cur), 127))
	}
	return msgs
}

// Messages returns the messages for e and records the resulting bus state.
func (p *Mapper) Messages(e event.Event) []midi.Message {
	var msgs []midi.Message
	switch e.Type {
	case event.TypeProgram:
		msgs = p.reselect(p.m.ProgramChannel, p.program, e.Bus)
	case event.TypePreview:
		msgs = p.reselect(p.m.PreviewChannel, p.preview, e.Bus)
	case event.TypeCut:
		msgs = append(p.swap(e), midi.ControlChange(p.m.ProgramChannel, p.m.CutController, 127))
	case event.TypeTransition:
		msgs = append(p.swap(e), midi.ControlChange(p.m.ProgramChannel, p.m.TransitionController, 127))
	}
	p.program, p.preview = e.Program, e.Preview
	return msgs
}

func (p *Mapper) swap(e event.Event) []midi.Message {
	msgs := p.reselect(p.m.ProgramChannel, p.program, e.Program)
	return append(msgs, p.reselect(p.m.PreviewChannel, p.preview, e.Preview)...)
}
