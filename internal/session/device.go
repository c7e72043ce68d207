package session

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/google/uuid"
)

// ControllerDevice is a named MIDI controller binding and its controls
type ControllerDevice struct {
	id uuid.UUID

	mu          sync.RWMutex
	name        string
	inputDevice string
	controls    []*Control
}

// NewControllerDevice creates a device reading from inputDevice. Use
// midi.HostInput for host-forwarded MIDI or "" for every open port.
func NewControllerDevice(name, inputDevice string) *ControllerDevice {
	return NewControllerDeviceWithID(uuid.New(), name, inputDevice)
}

// NewControllerDeviceWithID creates a device with a known ID
func NewControllerDeviceWithID(id uuid.UUID, name, inputDevice string) *ControllerDevice {
	if name == "" {
		name = "Controller"
	}
	return &ControllerDevice{id: id, name: name, inputDevice: inputDevice}
}

// ID returns the device ID
func (d *ControllerDevice) ID() uuid.UUID { return d.id }

// Name returns the display name
func (d *ControllerDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// SetName renames the device
func (d *ControllerDevice) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// InputDevice returns the MIDI input selector
func (d *ControllerDevice) InputDevice() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inputDevice
}

// SetInputDevice changes the MIDI input selector
func (d *ControllerDevice) SetInputDevice(input string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputDevice = input
}

// IsHostInput reports whether the device reads host-forwarded MIDI
func (d *ControllerDevice) IsHostInput() bool {
	return d.InputDevice() == midi.HostInput
}

// AddControl attaches c to the device. A control already owned by another
// device is moved.
func (d *ControllerDevice) AddControl(c *Control) {
	if c == nil {
		return
	}
	if prev := c.Device(); prev != nil {
		if prev == d {
			return
		}
		prev.RemoveControl(c)
	}
	d.mu.Lock()
	d.controls = append(d.controls, c)
	d.mu.Unlock()
	c.setDevice(d)
}

// RemoveControl detaches c and reports whether it was present
func (d *ControllerDevice) RemoveControl(c *Control) bool {
	d.mu.Lock()
	found := false
	for i, existing := range d.controls {
		if existing == c {
			d.controls = append(d.controls[:i], d.controls[i+1:]...)
			found = true
			break
		}
	}
	d.mu.Unlock()
	if found {
		c.setDevice(nil)
	}
	return found
}

// Controls returns a snapshot of the control list
func (d *ControllerDevice) Controls() []*Control {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Control, len(d.controls))
	copy(out, d.controls)
	return out
}

// NumControls returns the control count
func (d *ControllerDevice) NumControls() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.controls)
}

// FindControl returns the control with id, or nil
func (d *ControllerDevice) FindControl(id uuid.UUID) *Control {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.controls {
		if c.id == id {
			return c
		}
	}
	return nil
}

// FindControlForMessage returns the first control addressed by msg, or nil
func (d *ControllerDevice) FindControlForMessage(msg midi.Message) *Control {
	var (
		t  EventType
		id int
	)
	switch {
	case msg.IsController():
		t, id = EventController, msg.ControllerNumber()
	case msg.IsNoteOnOrOff():
		t, id = EventNote, msg.NoteNumber()
	default:
		return nil
	}
	for _, c := range d.Controls() {
		if c.EventType() != t || c.EventID() != id {
			continue
		}
		if ch := c.Channel(); ch != 0 && ch != msg.Channel() {
			continue
		}
		return c
	}
	return nil
}
