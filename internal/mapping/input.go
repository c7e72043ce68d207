package mapping

import (
	"sync"
	"sync/atomic"

	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

// Transport delivers MIDI from named inputs to callbacks
type Transport interface {
	AddInputCallback(deviceID string, cb midi.InputCallback, nonConsuming bool) error
	RemoveInputCallback(cb midi.InputCallback)
}

// numberSet is a bitset over MIDI numbers 0-127
type numberSet [2]uint64

func (s *numberSet) add(n int) { s[n>>6] |= 1 << uint(n&63) }

func (s *numberSet) has(n int) bool {
	if n < 0 || n > 127 {
		return false
	}
	return s[n>>6]&(1<<uint(n&63)) != 0
}

// routes is the immutable view the MIDI goroutine reads. A new one is
// published on every open.
type routes struct {
	ccs, notes   numberSet
	ccControls   [128][]*session.Control
	noteControls [128][]*session.Control
	handlers     []handler
}

func buildRoutes(device *session.ControllerDevice, handlers []handler) *routes {
	r := &routes{handlers: make([]handler, len(handlers))}
	copy(r.handlers, handlers)
	for _, c := range device.Controls() {
		n := c.EventID()
		if c.IsControllerEvent() {
			r.ccs.add(n)
			r.ccControls[n] = append(r.ccControls[n], c)
		} else {
			r.notes.add(n)
			r.noteControls[n] = append(r.noteControls[n], c)
		}
	}
	return r
}

// lookup returns the configured control addressed by msg, if any
func (r *routes) lookup(msg midi.Message) *session.Control {
	var candidates []*session.Control
	switch {
	case msg.IsController():
		candidates = r.ccControls[msg.ControllerNumber()]
	case msg.IsNoteOnOrOff():
		candidates = r.noteControls[msg.NoteNumber()]
	}
	for _, c := range candidates {
		if ch := c.Channel(); ch == 0 || ch == msg.Channel() {
			return c
		}
	}
	return nil
}

// Input binds one controller device subscription to its handlers
type Input struct {
	device    *session.ControllerDevice
	transport Transport
	engine    *Engine
	log       zerolog.Logger

	// main loop side
	mu         sync.Mutex
	handlers   []handler
	subscribed bool

	current atomic.Pointer[routes]
}

func newInput(e *Engine, device *session.ControllerDevice, transport Transport) *Input {
	return &Input{
		device:    device,
		transport: transport,
		engine:    e,
		log:       e.log.With().Str("device", device.Name()).Logger(),
	}
}

// Device returns the bound device
func (in *Input) Device() *session.ControllerDevice { return in.device }

// IsInputFor reports whether the input serves d. Identity, not equality.
func (in *Input) IsInputFor(d *session.ControllerDevice) bool { return in.device == d }

// IsRunning reports whether the input is subscribed
func (in *Input) IsRunning() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.subscribed
}

// NumHandlers returns the handler count
func (in *Input) NumHandlers() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.handlers)
}

// HandleIncomingMidiMessage runs on MIDI goroutines
func (in *Input) HandleIncomingMidiMessage(_ string, msg midi.Message) {
	r := in.current.Load()
	if r == nil {
		return
	}

	// capture sees every controller and note-on, configured or not
	if in.engine.IsCapturing() && (msg.IsController() || msg.IsNoteOn()) {
		in.engine.captureNextEvent(in, r.lookup(msg), msg)
	}

	switch {
	case msg.IsController():
		if !r.ccs.has(msg.ControllerNumber()) {
			return
		}
	case msg.IsNoteOnOrOff():
		if !r.notes.has(msg.NoteNumber()) {
			return
		}
	default:
		return
	}

	for _, h := range r.handlers {
		if h.wants(msg) {
			h.perform(msg)
		}
	}
}

func (in *Input) start() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.startLocked()
}

func (in *Input) stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stopLocked()
}

// close stops the input and releases its handlers
func (in *Input) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stopLocked()
	for _, h := range in.handlers {
		h.close()
	}
	in.handlers = nil
}

func (in *Input) addHandler(h handler) {
	in.mu.Lock()
	defer in.mu.Unlock()
	running := in.subscribed
	if running {
		in.stopLocked()
	}
	in.handlers = append(in.handlers, h)
	if running {
		in.startLocked()
	}
}

func (in *Input) startLocked() bool {
	in.stopLocked()
	in.current.Store(buildRoutes(in.device, in.handlers))
	if err := in.transport.AddInputCallback(in.device.InputDevice(), in, true); err != nil {
		in.log.Debug().Err(err).Msg("input subscription failed")
		in.current.Store(nil)
		return false
	}
	in.subscribed = true
	return true
}

// stopLocked unsubscribes before returning, so no later delivery reaches
// the handlers
func (in *Input) stopLocked() {
	if !in.subscribed {
		return
	}
	in.transport.RemoveInputCallback(in)
	in.subscribed = false
	in.current.Store(nil)
}
