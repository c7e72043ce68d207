package mapping

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	subs    []midi.InputCallback
	adds    int
	removes int
	fail    bool
	onAdd   func(cb midi.InputCallback)
}

func (f *fakeTransport) AddInputCallback(_ string, cb midi.InputCallback, nonConsuming bool) error {
	if !nonConsuming {
		return errors.New("inputs must not consume")
	}
	f.mu.Lock()
	if f.fail {
		f.mu.Unlock()
		return errors.New("port unavailable")
	}
	f.adds++
	f.subs = append(f.subs, cb)
	hook := f.onAdd
	f.mu.Unlock()

	if hook != nil {
		hook(cb)
	}
	return nil
}

func (f *fakeTransport) RemoveInputCallback(cb midi.InputCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.subs {
		if existing == cb {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			f.removes++
			return
		}
	}
}

func (f *fakeTransport) send(msgs ...midi.Message) {
	f.mu.Lock()
	subs := append([]midi.InputCallback(nil), f.subs...)
	f.mu.Unlock()
	for _, msg := range msgs {
		for _, cb := range subs {
			cb.HandleIncomingMidiMessage("fake", msg)
		}
	}
}

func (f *fakeTransport) counts() (subs, adds, removes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs), f.adds, f.removes
}

// countingHandler records how often the input consults it
type countingHandler struct {
	ctrl     *session.Control
	accept   bool
	wanted   atomic.Int32
	performs atomic.Int32
}

func (h *countingHandler) wants(midi.Message) bool {
	h.wanted.Add(1)
	return h.accept
}

func (h *countingHandler) perform(midi.Message)       { h.performs.Add(1) }
func (h *countingHandler) control() *session.Control { return h.ctrl }
func (h *countingHandler) close()                    {}

type toggleCounter struct{ enabled, bypass, mute atomic.Int32 }

func (c *toggleCounter) EnablementChanged(*graph.Processor) { c.enabled.Add(1) }
func (c *toggleCounter) BypassChanged(*graph.Processor)     { c.bypass.Add(1) }
func (c *toggleCounter) MuteChanged(*graph.Processor)       { c.mute.Add(1) }

type fixture struct {
	loop      *mainloop.Loop
	engine    *Engine
	transport *fakeTransport
	device    *session.ControllerDevice
	node      *graph.Node
	proc      *graph.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := mainloop.New(64)
	f := &fixture{
		loop:      loop,
		engine:    New(loop),
		transport: &fakeTransport{},
		device:    session.NewControllerDevice("Nanokontrol", ""),
		proc:      graph.NewProcessor("Synth", "cutoff", "resonance"),
	}
	f.node = graph.NewNode("Synth", f.proc)
	require.True(t, f.engine.AddInput(f.device, f.transport))
	return f
}

func (f *fixture) control(t session.EventType, number int, configure ...func(*session.Control)) *session.Control {
	c := session.NewControl("")
	c.SetEvent(t, number)
	for _, fn := range configure {
		fn(c)
	}
	f.device.AddControl(c)
	return c
}

func (f *fixture) bind(t *testing.T, c *session.Control, parameter int) {
	t.Helper()
	require.True(t, f.engine.AddHandler(c, f.node, parameter))
}

func (f *fixture) start() { f.engine.StartMapping() }

func (f *fixture) cc(value int) {
	f.transport.send(midi.ControllerEvent(1, 1, uint8(value)))
}

func (f *fixture) drain() { f.loop.Drain() }

func (f *fixture) handlers() []handler {
	r := f.engine.Input(f.device).current.Load()
	if r == nil {
		return nil
	}
	return r.handlers
}

func toggle(mode session.ToggleMode, value int) func(*session.Control) {
	return func(c *session.Control) {
		c.SetToggleMode(mode)
		c.SetToggleValue(value)
	}
}
