package mapping

import (
	"testing"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuousControllerScenario(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventController, 1), 0)
	f.start()

	f.transport.send(midi.ControllerEvent(5, 1, 64))

	p := f.proc.Parameter(0)
	assert.InDelta(t, 64.0/127.0, p.Value(), 1e-6)
	begun, ended := p.Gestures()
	assert.Equal(t, int64(1), begun)
	assert.Equal(t, int64(1), ended)
	assert.Equal(t, 0, f.loop.Pending(), "continuous parameters are set synchronously")
}

func TestControllerChannelFilter(t *testing.T) {
	f := newFixture(t)
	c := f.control(session.EventController, 1, func(c *session.Control) { c.SetChannel(2) })
	f.bind(t, c, 0)
	f.start()

	f.transport.send(midi.ControllerEvent(1, 1, 127))
	assert.Equal(t, float32(0), f.proc.Parameter(0).Value())

	f.transport.send(midi.ControllerEvent(2, 1, 127))
	assert.Equal(t, float32(1), f.proc.Parameter(0).Value())

	// live edits reach the handler without a restart
	c.SetChannel(0)
	f.transport.send(midi.ControllerEvent(9, 1, 0))
	assert.Equal(t, float32(0), f.proc.Parameter(0).Value())
}

func TestControllerThresholdEdges(t *testing.T) {
	f := newFixture(t)
	f.proc.SetEnabled(false)
	f.node.SetObject(f.proc)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 64)), graph.EnabledParameter)
	f.start()
	h := f.handlers()[0].(*ccHandler)

	steps := []struct {
		value   int
		desired int
		enabled bool
	}{
		{0, 0, false},
		{30, 0, false},
		{70, 1, true},
		{40, 0, false},
	}
	for _, step := range steps {
		f.cc(step.value)
		assert.Equal(t, step.desired, h.desiredState(), "cc %d", step.value)
		f.drain()
		assert.Equal(t, step.enabled, f.proc.IsEnabled(), "cc %d", step.value)
		assert.Equal(t, step.enabled, f.node.IsEnabled(), "mirror at cc %d", step.value)
	}
}

func TestControllerThresholdZero(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 0)), graph.MuteParameter)
	f.start()
	h := f.handlers()[0].(*ccHandler)

	f.cc(0)
	assert.Equal(t, 0, h.desiredState())
	f.cc(5)
	assert.Equal(t, 1, h.desiredState())
	f.drain()
	assert.True(t, f.node.IsMuted())
	f.cc(0)
	assert.Equal(t, 0, h.desiredState())
	f.drain()
	assert.False(t, f.node.IsMuted())
	assert.False(t, f.proc.IsMuted())
}

func TestControllerFirstSampleOnlyPrimes(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 0)), graph.MuteParameter)
	f.start()
	h := f.handlers()[0].(*ccHandler)

	f.cc(5)
	assert.Equal(t, 0, h.desiredState())
	assert.Equal(t, 0, f.loop.Pending())
	assert.False(t, f.node.IsMuted())
}

func TestControllerThresholdTop(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 127)), graph.BypassParameter)
	f.start()

	f.cc(0)
	f.cc(127)
	f.drain()
	assert.False(t, f.proc.IsSuspended(), "already processing")

	f.cc(100)
	f.drain()
	assert.True(t, f.proc.IsSuspended())
	assert.True(t, f.node.IsBypassed())

	f.cc(127)
	f.drain()
	assert.False(t, f.proc.IsSuspended())
	assert.False(t, f.node.IsBypassed())
}

func TestControllerEqualsFlipsOnExactHits(t *testing.T) {
	f := newFixture(t)
	counter := &toggleCounter{}
	f.proc.AddListener(counter)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEquals, 100)), graph.EnabledParameter)
	f.start()
	h := f.handlers()[0].(*ccHandler)

	var desired []int
	for _, v := range []int{50, 100, 50, 100} {
		f.cc(v)
		desired = append(desired, h.desiredState())
		f.drain()
	}

	assert.Equal(t, []int{1, 0, 0, 1}, desired)
	assert.Equal(t, int32(2), counter.enabled.Load())
	assert.True(t, f.proc.IsEnabled())
}

func TestControllerInverseToggle(t *testing.T) {
	f := newFixture(t)
	c := f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 64), func(c *session.Control) {
		c.SetInverseToggle(true)
	})
	f.bind(t, c, graph.EnabledParameter)
	f.start()

	f.cc(0)
	f.cc(100)
	f.drain()
	assert.False(t, f.proc.IsEnabled(), "an upward crossing disables when inverted")

	f.cc(10)
	f.drain()
	assert.True(t, f.proc.IsEnabled())
}

func TestControllerUpdatesCoalesce(t *testing.T) {
	f := newFixture(t)
	counter := &toggleCounter{}
	f.proc.AddListener(counter)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 64)), graph.MuteParameter)
	f.start()

	f.cc(0)
	f.cc(100)
	f.cc(0)
	f.cc(100)
	assert.Equal(t, 1, f.loop.Pending())
	f.drain()
	assert.True(t, f.node.IsMuted(), "the drained update carries the latest state")
	assert.Equal(t, int32(1), counter.mute.Load())
}

func TestControllerRetriesDroppedUpdate(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEqualsOrHigher, 64)), graph.MuteParameter)
	f.start()

	for f.loop.Post(func() {}) {
	}
	f.cc(0)
	f.cc(100)
	f.drain()
	assert.False(t, f.node.IsMuted(), "the update was dropped by the full queue")

	// no new edge, but the dropped state is sent again
	f.cc(110)
	assert.Equal(t, 1, f.loop.Pending())
	f.drain()
	assert.True(t, f.node.IsMuted())

	f.cc(120)
	assert.Equal(t, 0, f.loop.Pending())
}

func TestNoteToggleScenario(t *testing.T) {
	f := newFixture(t)
	pedal := f.control(session.EventNote, 64, func(c *session.Control) { c.SetChannel(1) })
	f.bind(t, pedal, graph.MuteParameter)
	f.start()

	f.transport.send(midi.NoteOn(1, 64, 100))
	assert.False(t, f.node.IsMuted(), "applied asynchronously")
	f.drain()
	assert.True(t, f.node.IsMuted())

	f.transport.send(midi.NoteOff(1, 64), midi.NoteOn(2, 64, 100))
	f.drain()
	assert.True(t, f.node.IsMuted(), "note off and other channels are ignored")

	f.transport.send(midi.NoteOn(1, 64, 100))
	f.drain()
	assert.False(t, f.node.IsMuted())
}

func TestNoteTogglesBeforeDrainCancelInPairs(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventNote, 64), graph.EnabledParameter)
	f.start()

	f.transport.send(midi.NoteOn(1, 64, 100), midi.NoteOn(1, 64, 100))
	f.drain()
	assert.True(t, f.proc.IsEnabled())

	f.transport.send(midi.NoteOn(1, 64, 100), midi.NoteOn(1, 64, 100), midi.NoteOn(1, 64, 100))
	f.drain()
	assert.False(t, f.proc.IsEnabled())
}

func TestNoteMomentaryInverseBypass(t *testing.T) {
	f := newFixture(t)
	c := f.control(session.EventNote, 36, func(c *session.Control) {
		c.SetMomentary(true)
		c.SetInverseToggle(true)
	})
	f.bind(t, c, graph.BypassParameter)
	f.start()

	f.transport.send(midi.NoteOn(1, 36, 100))
	f.drain()
	assert.True(t, f.proc.IsSuspended())
	assert.True(t, f.node.IsBypassed())

	f.transport.send(midi.NoteOff(1, 36))
	f.drain()
	assert.False(t, f.proc.IsSuspended())
	assert.False(t, f.node.IsBypassed())
}

func TestNoteMomentaryBypass(t *testing.T) {
	f := newFixture(t)
	c := f.control(session.EventNote, 36, func(c *session.Control) { c.SetMomentary(true) })
	f.bind(t, c, graph.BypassParameter)
	f.start()

	f.transport.send(midi.NoteOff(1, 36))
	f.drain()
	assert.True(t, f.proc.IsSuspended())

	f.transport.send(midi.NoteOn(1, 36, 100))
	f.drain()
	assert.False(t, f.proc.IsSuspended())
}

func TestNoteRealParameter(t *testing.T) {
	f := newFixture(t)
	c := f.control(session.EventNote, 60)
	f.bind(t, c, 1)
	f.start()
	p := f.proc.Parameter(1)

	f.transport.send(midi.NoteOn(1, 60, 100))
	assert.Equal(t, float32(1), p.Value())
	f.transport.send(midi.NoteOff(1, 60))
	assert.Equal(t, float32(1), p.Value())
	f.transport.send(midi.NoteOn(1, 60, 100))
	assert.Equal(t, float32(0), p.Value())

	c.SetMomentary(true)
	f.transport.send(midi.NoteOn(1, 60, 100))
	assert.Equal(t, float32(1), p.Value())
	f.transport.send(midi.NoteOff(1, 60))
	assert.Equal(t, float32(0), p.Value())

	c.SetInverseToggle(true)
	f.transport.send(midi.NoteOn(1, 60, 100))
	assert.Equal(t, float32(0), p.Value())
	f.transport.send(midi.NoteOff(1, 60))
	assert.Equal(t, float32(1), p.Value())

	begun, ended := p.Gestures()
	assert.Equal(t, begun, ended)
	assert.Equal(t, int64(6), begun)
}

func TestRemovedNodeIsNeverTouched(t *testing.T) {
	f := newFixture(t)
	g := graph.New()
	require.True(t, g.AddNode(f.node))
	f.bind(t, f.control(session.EventController, 1, toggle(session.ToggleEquals, 127)), graph.MuteParameter)
	f.bind(t, f.control(session.EventController, 2), 0)
	f.start()

	f.cc(127)
	require.True(t, g.RemoveNode(f.node.ID()))
	f.drain()
	f.transport.send(midi.ControllerEvent(1, 2, 127))

	assert.False(t, f.proc.IsMuted())
	assert.Equal(t, float32(0), f.proc.Parameter(0).Value())
}

func TestReplacedProcessorIsNeverTouched(t *testing.T) {
	f := newFixture(t)
	f.bind(t, f.control(session.EventNote, 64), graph.MuteParameter)
	f.start()

	replacement := graph.NewProcessor("Synth", "cutoff", "resonance")
	f.node.SetObject(replacement)
	f.transport.send(midi.NoteOn(1, 64, 100))
	f.drain()

	assert.False(t, replacement.IsMuted())
	assert.False(t, f.proc.IsMuted())
}
