package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Status nibbles for channel voice messages
const (
	statusNoteOff     uint8 = 0x80
	statusNoteOn      uint8 = 0x90
	statusController  uint8 = 0xB0
	statusActiveSense uint8 = 0xFE
)

// Message is a decoded short MIDI message. It is a plain value so it can be
// copied between the MIDI and main goroutines without sharing buffers.
type Message struct {
	status    uint8
	data1     uint8
	data2     uint8
	timestamp int32 // milliseconds, as delivered by the driver
}

// FromMIDI decodes a gomidi message received at timestampms
func FromMIDI(msg midi.Message, timestampms int32) Message {
	var channel, a, b uint8

	switch {
	case msg.GetNoteOn(&channel, &a, &b):
		return Message{status: statusNoteOn | channel, data1: a, data2: b, timestamp: timestampms}
	case msg.GetNoteOff(&channel, &a, &b):
		return Message{status: statusNoteOff | channel, data1: a, data2: b, timestamp: timestampms}
	case msg.GetControlChange(&channel, &a, &b):
		return Message{status: statusController | channel, data1: a, data2: b, timestamp: timestampms}
	}

	// Anything else is kept raw so IsActiveSense and String still work
	raw := msg.Bytes()
	m := Message{timestamp: timestampms}
	if len(raw) > 0 {
		m.status = raw[0]
	}
	if len(raw) > 1 {
		m.data1 = raw[1]
	}
	if len(raw) > 2 {
		m.data2 = raw[2]
	}
	return m
}

// ControllerEvent builds a control change on channel 1-16
func ControllerEvent(channel, controller, value uint8) Message {
	return FromMIDI(midi.ControlChange(toWireChannel(channel), controller, value), 0)
}

// NoteOn builds a note on on channel 1-16
func NoteOn(channel, note, velocity uint8) Message {
	return FromMIDI(midi.NoteOn(toWireChannel(channel), note, velocity), 0)
}

// NoteOff builds a note off on channel 1-16
func NoteOff(channel, note uint8) Message {
	return FromMIDI(midi.NoteOff(toWireChannel(channel), note), 0)
}

func toWireChannel(channel uint8) uint8 {
	if channel < 1 || channel > 16 {
		return 0
	}
	return channel - 1
}

func (m Message) kind() uint8 { return m.status & 0xF0 }

// IsController reports whether m is a control change
func (m Message) IsController() bool { return m.kind() == statusController }

// ControllerNumber returns the CC number
func (m Message) ControllerNumber() int { return int(m.data1) }

// ControllerValue returns the CC value
func (m Message) ControllerValue() int { return int(m.data2) }

// IsNoteOn reports a note on with non-zero velocity
func (m Message) IsNoteOn() bool { return m.kind() == statusNoteOn && m.data2 > 0 }

// IsNoteOff reports a note off, including note on with velocity 0
func (m Message) IsNoteOff() bool {
	return m.kind() == statusNoteOff || (m.kind() == statusNoteOn && m.data2 == 0)
}

// IsNoteOnOrOff reports any note message
func (m Message) IsNoteOnOrOff() bool {
	return m.kind() == statusNoteOn || m.kind() == statusNoteOff
}

// NoteNumber returns the key
func (m Message) NoteNumber() int { return int(m.data1) }

// Velocity returns the note velocity
func (m Message) Velocity() int { return int(m.data2) }

// Channel returns the channel in the range 1-16, or 0 for system messages
func (m Message) Channel() int {
	if m.status >= 0xF0 || m.status < 0x80 {
		return 0
	}
	return int(m.status&0x0F) + 1
}

// IsActiveSense reports the active sensing heartbeat
func (m Message) IsActiveSense() bool { return m.status == statusActiveSense }

// IsZero reports whether m holds no message at all
func (m Message) IsZero() bool { return m.status == 0 }

// Timestamp returns the driver timestamp in milliseconds
func (m Message) Timestamp() int32 { return m.timestamp }

// WithTimestamp returns a copy of m stamped with ts
func (m Message) WithTimestamp(ts int32) Message {
	m.timestamp = ts
	return m
}

// Raw returns the gomidi representation of m
func (m Message) Raw() midi.Message {
	switch m.kind() {
	case statusNoteOn, statusNoteOff, statusController:
		return midi.Message{m.status, m.data1, m.data2}
	}
	if m.status == 0 {
		return nil
	}
	return midi.Message{m.status}
}

func (m Message) String() string {
	if m.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s @%dms", m.Raw().String(), m.timestamp)
}
