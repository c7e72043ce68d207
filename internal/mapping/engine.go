// Package mapping routes controller MIDI to graph parameters. Inputs own
// per-device subscriptions, handlers apply matched events, and the engine
// hosts the single capture slot used by MIDI learn.
package mapping

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

// Engine is the registry of controller inputs. Its methods are called on
// the main loop.
type Engine struct {
	loop    *mainloop.Loop
	log     zerolog.Logger
	capture *mailbox

	mu      sync.Mutex
	inputs  []*Input
	running bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates a stopped engine with capture disarmed. Deferred updates and
// capture notifications are posted to loop.
func New(loop *mainloop.Loop, opts ...Option) *Engine {
	e := &Engine{loop: loop, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.capture = newMailbox(loop)
	return e
}

// AddInput registers an input for device. An existing input counts as
// success. The input starts at once if mapping is running.
func (e *Engine) AddInput(device *session.ControllerDevice, transport Transport) bool {
	if device == nil || transport == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.findInputLocked(device) != nil {
		return true
	}
	in := newInput(e, device, transport)
	e.inputs = append(e.inputs, in)
	if e.running {
		in.start()
	}
	e.log.Debug().Str("device", device.Name()).Msg("added input")
	return true
}

// AddHandler maps control to parameter on node. It fails when the control
// has no device input, the node has no live processor or the parameter
// index is out of range. A running input is restarted to pick it up.
func (e *Engine) AddHandler(control *session.Control, node *graph.Node, parameter int) bool {
	if !control.IsValid() || node == nil {
		e.log.Debug().Msg("add handler: invalid control or node")
		return false
	}
	object := node.Object()
	if object == nil || !object.ContainsParameter(parameter) {
		e.log.Debug().Str("node", node.Name()).Int("parameter", parameter).Msg("add handler: no such parameter")
		return false
	}

	e.mu.Lock()
	in := e.findInputLocked(control.Device())
	e.mu.Unlock()
	if in == nil {
		e.log.Debug().Str("control", control.Name()).Msg("add handler: no input for device")
		return false
	}

	var h handler
	msg := control.MidiMessage()
	switch {
	case msg.IsController():
		h = newCCHandler(e.loop, control, node, object, parameter, e.log)
	case msg.IsNoteOn():
		h = newNoteHandler(e.loop, control, node, object, parameter, e.log)
	default:
		return false
	}
	in.addHandler(h)
	return true
}

// RemoveInput closes and drops the input for device. Absent inputs count
// as removed.
func (e *Engine) RemoveInput(device *session.ControllerDevice) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, in := range e.inputs {
		if in.IsInputFor(device) {
			in.close()
			e.inputs = append(e.inputs[:i], e.inputs[i+1:]...)
			break
		}
	}
	return e.findInputLocked(device) == nil
}

// RefreshInput resubscribes the input for device, picking up control edits
func (e *Engine) RefreshInput(device *session.ControllerDevice) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if in := e.findInputLocked(device); in != nil {
		in.stop()
		if e.running {
			in.start()
		}
	}
	return true
}

// Clear stops mapping and drops every input
func (e *Engine) Clear() {
	e.StopMapping()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, in := range e.inputs {
		in.close()
	}
	e.inputs = nil
}

// StartMapping starts every input, stopping them first
func (e *Engine) StartMapping() {
	e.StopMapping()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, in := range e.inputs {
		in.start()
	}
	e.running = true
}

// StopMapping stops every input
func (e *Engine) StopMapping() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	for _, in := range e.inputs {
		in.stop()
	}
}

// IsRunning reports whether mapping is started
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// NumInputs returns the input count
func (e *Engine) NumInputs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

// Input returns the input for device, or nil
func (e *Engine) Input(device *session.ControllerDevice) *Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findInputLocked(device)
}

// Capture arms or disarms the capture slot. Arming while armed keeps
// waiting.
func (e *Engine) Capture(armed bool) { e.capture.arm(armed) }

// IsCapturing reports whether the capture slot is armed
func (e *Engine) IsCapturing() bool { return e.capture.isArmed() }

// ResetCapture disarms, drops a pending notification and empties the slot
func (e *Engine) ResetCapture() { e.capture.reset() }

// OnCaptured registers fn to run on the main loop after each capture
func (e *Engine) OnCaptured(fn func()) (disconnect func()) {
	return e.capture.captured.Connect(fn)
}

// CapturedMessage returns the last captured message
func (e *Engine) CapturedMessage() midi.Message {
	_, _, msg := e.capture.result()
	return msg
}

// CapturedControl returns the configured control of the last capture, or
// nil when the message matched none
func (e *Engine) CapturedControl() *session.Control {
	_, c, _ := e.capture.result()
	return c
}

// CapturedDevice returns the device the last capture arrived on
func (e *Engine) CapturedDevice() *session.ControllerDevice {
	d, _, _ := e.capture.result()
	return d
}

// captureNextEvent fills the slot if armed. Dispatch to handlers goes on
// either way.
func (e *Engine) captureNextEvent(in *Input, control *session.Control, msg midi.Message) bool {
	return e.capture.offer(in.device, control, msg)
}

func (e *Engine) findInputLocked(device *session.ControllerDevice) *Input {
	if device == nil {
		return nil
	}
	for _, in := range e.inputs {
		if in.IsInputFor(device) {
			return in
		}
	}
	return nil
}
