package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paramEvents struct {
	values   []float32
	gestures []bool
}

func (e *paramEvents) ParameterValueChanged(_ *Parameter, v float32) {
	e.values = append(e.values, v)
}

func (e *paramEvents) ParameterGestureChanged(_ *Parameter, starting bool) {
	e.gestures = append(e.gestures, starting)
}

type toggleEvents struct{ enabled, bypass, mute int }

func (e *toggleEvents) EnablementChanged(*Processor) { e.enabled++ }
func (e *toggleEvents) BypassChanged(*Processor)     { e.bypass++ }
func (e *toggleEvents) MuteChanged(*Processor)       { e.mute++ }

func TestParameterValueAndGestures(t *testing.T) {
	proc := NewProcessor("Gain", "gain", "pan")
	p := proc.Parameter(0)
	require.NotNil(t, p)

	events := &paramEvents{}
	p.AddListener(events)
	p.AddListener(events)

	p.BeginChangeGesture()
	p.SetValueNotifyingHost(0.25)
	p.EndChangeGesture()
	p.SetValueNotifyingHost(3)

	assert.Equal(t, float32(1), p.Value())
	assert.Equal(t, []float32{0.25, 1}, events.values)
	assert.Equal(t, []bool{true, false}, events.gestures)

	begun, ended := p.Gestures()
	assert.Equal(t, int64(1), begun)
	assert.Equal(t, int64(1), ended)

	p.RemoveListener(events)
	p.SetValueNotifyingHost(0)
	assert.Len(t, events.values, 2)
}

func TestProcessorContainsParameter(t *testing.T) {
	proc := NewProcessor("Synth", "cutoff")

	assert.True(t, proc.ContainsParameter(0))
	assert.False(t, proc.ContainsParameter(1))
	assert.True(t, proc.ContainsParameter(EnabledParameter))
	assert.True(t, proc.ContainsParameter(BypassParameter))
	assert.True(t, proc.ContainsParameter(MuteParameter))
	assert.False(t, proc.ContainsParameter(NoParameter))
	assert.Nil(t, proc.Parameter(-2))
}

func TestProcessorToggleNotifications(t *testing.T) {
	proc := NewProcessor("Delay")
	events := &toggleEvents{}
	proc.AddListener(events)

	proc.SetEnabled(true)
	proc.SetEnabled(false)
	proc.SuspendProcessing(true)
	proc.SuspendProcessing(true)
	proc.SetMuted(true)

	assert.Equal(t, 1, events.enabled, "unchanged state does not notify")
	assert.Equal(t, 1, events.bypass)
	assert.Equal(t, 1, events.mute)
	assert.False(t, proc.IsEnabled())
	assert.True(t, proc.IsSuspended())
	assert.True(t, proc.IsMuted())
}

func TestNodeMirrors(t *testing.T) {
	proc := NewProcessor("Reverb")
	proc.SuspendProcessing(true)
	n := NewNode("Reverb", proc)

	assert.True(t, n.IsEnabled())
	assert.True(t, n.IsBypassed())
	assert.False(t, n.IsMuted())

	n.SetMuted(true)
	assert.True(t, n.IsMuted())
	assert.True(t, proc.IsMuted())
}

func TestGraphRemoveNodeUnloadsObject(t *testing.T) {
	g := New()
	n := NewNode("EQ", NewProcessor("EQ", "low", "high"))
	require.True(t, g.AddNode(n))
	assert.False(t, g.AddNode(n))

	assert.Same(t, n, g.FindNode(n.ID()))
	assert.Nil(t, g.FindNode(uuid.New()))

	require.True(t, g.RemoveNode(n.ID()))
	assert.Nil(t, n.Object())
	assert.Equal(t, 0, g.NumNodes())
	assert.False(t, g.RemoveNode(n.ID()))
}
