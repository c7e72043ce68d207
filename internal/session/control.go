package session

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/google/uuid"
)

// EventType is the kind of MIDI message a control sends
type EventType string

const (
	EventNote       EventType = "note"
	EventController EventType = "controller"
)

// ToggleMode selects how CC values drive toggle targets
type ToggleMode string

const (
	ToggleEqualsOrHigher ToggleMode = "eqorhi" // threshold crossing
	ToggleEquals         ToggleMode = "eq"     // exact value hit flips
)

// ParseToggleMode maps unknown strings to ToggleEqualsOrHigher
func ParseToggleMode(s string) ToggleMode {
	if ToggleMode(s) == ToggleEquals {
		return ToggleEquals
	}
	return ToggleEqualsOrHigher
}

// ControlProperty names the field reported to control subscribers
type ControlProperty int

const (
	PropName ControlProperty = iota
	PropEvent
	PropChannel
	PropMomentary
	PropToggleValue
	PropToggleMode
	PropInverseToggle
)

// Defaults for new controls
const (
	DefaultToggleValue = 64
	maxEventID         = 127
	maxChannel         = 16
)

// Control is one addressable knob, fader, pad or key on a controller device.
// Fields are edited live from the UI; subscribers are told which one changed.
type Control struct {
	id uuid.UUID

	mu            sync.RWMutex
	device        *ControllerDevice
	name          string
	eventType     EventType
	eventID       int
	channel       int
	momentary     bool
	toggleValue   int
	toggleMode    ToggleMode
	inverseToggle bool

	subMu sync.Mutex
	subID int
	subs  map[int]func(ControlProperty)
}

// NewControl creates a CC control with default toggle settings
func NewControl(name string) *Control {
	return NewControlWithID(uuid.New(), name)
}

// NewControlWithID creates a control with a known ID
func NewControlWithID(id uuid.UUID, name string) *Control {
	if name == "" {
		name = "Control"
	}
	return &Control{
		id:          id,
		name:        name,
		eventType:   EventController,
		toggleValue: DefaultToggleValue,
		toggleMode:  ToggleEqualsOrHigher,
	}
}

// NewControlFromMessage creates a control addressing msg, or nil when msg
// is neither a CC nor a note
func NewControlFromMessage(name string, msg midi.Message) *Control {
	c := NewControl(name)
	switch {
	case msg.IsController():
		c.eventType = EventController
		c.eventID = msg.ControllerNumber()
	case msg.IsNoteOnOrOff():
		c.eventType = EventNote
		c.eventID = msg.NoteNumber()
	default:
		return nil
	}
	return c
}

// ID returns the control ID
func (c *Control) ID() uuid.UUID { return c.id }

// Device returns the owning device, or nil when detached
func (c *Control) Device() *ControllerDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

func (c *Control) setDevice(d *ControllerDevice) {
	c.mu.Lock()
	c.device = d
	c.mu.Unlock()
}

// IsValid reports whether the control belongs to a device
func (c *Control) IsValid() bool {
	return c != nil && c.Device() != nil
}

// Name returns the display name
func (c *Control) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// EventType returns note or controller
func (c *Control) EventType() EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventType
}

// IsNoteEvent reports a note control
func (c *Control) IsNoteEvent() bool { return c.EventType() == EventNote }

// IsControllerEvent reports a CC control
func (c *Control) IsControllerEvent() bool { return c.EventType() == EventController }

// EventID returns the note or CC number
func (c *Control) EventID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventID
}

// Channel returns the channel filter, 0 meaning omni
func (c *Control) Channel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// IsMomentary reports whether a note control acts only while held
func (c *Control) IsMomentary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.momentary
}

// ToggleValue returns the CC toggle threshold
func (c *Control) ToggleValue() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toggleValue
}

// ToggleMode returns the CC toggle mode
func (c *Control) ToggleMode() ToggleMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toggleMode
}

// InverseToggle reports whether toggle targets are inverted
func (c *Control) InverseToggle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inverseToggle
}

// MidiMessage returns the canonical message this control sends
func (c *Control) MidiMessage() midi.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.eventType {
	case EventNote:
		return midi.NoteOn(1, uint8(c.eventID), 64)
	case EventController:
		return midi.ControllerEvent(1, uint8(c.eventID), 64)
	}
	return midi.Message{}
}

// SetName renames the control
func (c *Control) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.notify(PropName)
}

// SetEvent sets the event type and number, clamping the number to 0-127
func (c *Control) SetEvent(t EventType, id int) {
	if t != EventNote {
		t = EventController
	}
	c.mu.Lock()
	c.eventType = t
	c.eventID = clamp(id, 0, maxEventID)
	c.mu.Unlock()
	c.notify(PropEvent)
}

// SetChannel sets the channel filter, clamped to 0-16
func (c *Control) SetChannel(ch int) {
	c.mu.Lock()
	c.channel = clamp(ch, 0, maxChannel)
	c.mu.Unlock()
	c.notify(PropChannel)
}

// SetMomentary sets momentary note behavior
func (c *Control) SetMomentary(momentary bool) {
	c.mu.Lock()
	c.momentary = momentary
	c.mu.Unlock()
	c.notify(PropMomentary)
}

// SetToggleValue sets the CC threshold, clamped to 0-127
func (c *Control) SetToggleValue(v int) {
	c.mu.Lock()
	c.toggleValue = clamp(v, 0, maxEventID)
	c.mu.Unlock()
	c.notify(PropToggleValue)
}

// SetToggleMode sets the CC toggle mode
func (c *Control) SetToggleMode(m ToggleMode) {
	c.mu.Lock()
	c.toggleMode = ParseToggleMode(string(m))
	c.mu.Unlock()
	c.notify(PropToggleMode)
}

// SetInverseToggle inverts toggle targets
func (c *Control) SetInverseToggle(inverse bool) {
	c.mu.Lock()
	c.inverseToggle = inverse
	c.mu.Unlock()
	c.notify(PropInverseToggle)
}

// Subscribe registers fn for field changes. fn runs on the goroutine that
// made the change. The returned func removes the subscription.
func (c *Control) Subscribe(fn func(ControlProperty)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[int]func(ControlProperty))
	}
	id := c.subID
	c.subID++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// NumSubscribers returns the live subscription count
func (c *Control) NumSubscribers() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

func (c *Control) notify(p ControlProperty) {
	c.subMu.Lock()
	fns := make([]func(ControlProperty), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
