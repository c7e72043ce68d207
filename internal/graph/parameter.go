package graph

import (
	"math"
	"sync/atomic"
)

// Reserved parameter indices addressing node level toggles
const (
	NoParameter      = -1
	EnabledParameter = -2
	BypassParameter  = -3
	MuteParameter    = -4
)

// IsPseudoParameter reports whether index addresses Enabled, Bypass or Mute
func IsPseudoParameter(index int) bool {
	return index == EnabledParameter || index == BypassParameter || index == MuteParameter
}

// ParameterName returns a display name for pseudo indices
func ParameterName(index int) string {
	switch index {
	case EnabledParameter:
		return "Enabled"
	case BypassParameter:
		return "Bypass"
	case MuteParameter:
		return "Mute"
	case NoParameter:
		return "None"
	}
	return ""
}

// ParameterListener observes value changes and change gestures
type ParameterListener interface {
	ParameterValueChanged(p *Parameter, value float32)
	ParameterGestureChanged(p *Parameter, starting bool)
}

// Parameter is a normalized [0,1] processor parameter. All methods are safe
// to call from any goroutine.
type Parameter struct {
	index int
	name  string
	bits  atomic.Uint32

	gestureBegins atomic.Int64
	gestureEnds   atomic.Int64

	listeners listenerSet[ParameterListener]
}

func newParameter(index int, name string) *Parameter {
	return &Parameter{index: index, name: name}
}

// Index returns the parameter position in its processor
func (p *Parameter) Index() int { return p.index }

// Name returns the parameter name
func (p *Parameter) Name() string { return p.name }

// Value returns the current normalized value
func (p *Parameter) Value() float32 {
	return math.Float32frombits(p.bits.Load())
}

// SetValueNotifyingHost stores v clamped to [0,1] and notifies listeners
func (p *Parameter) SetValueNotifyingHost(v float32) {
	switch {
	case v < 0 || v != v:
		v = 0
	case v > 1:
		v = 1
	}
	p.bits.Store(math.Float32bits(v))
	p.listeners.each(func(l ParameterListener) {
		l.ParameterValueChanged(p, v)
	})
}

// BeginChangeGesture marks the start of a user or controller gesture
func (p *Parameter) BeginChangeGesture() {
	p.gestureBegins.Add(1)
	p.listeners.each(func(l ParameterListener) {
		l.ParameterGestureChanged(p, true)
	})
}

// EndChangeGesture marks the end of a gesture
func (p *Parameter) EndChangeGesture() {
	p.gestureEnds.Add(1)
	p.listeners.each(func(l ParameterListener) {
		l.ParameterGestureChanged(p, false)
	})
}

// Gestures returns how many gestures were begun and ended
func (p *Parameter) Gestures() (begun, ended int64) {
	return p.gestureBegins.Load(), p.gestureEnds.Load()
}

// AddListener registers l; adding twice is a no-op
func (p *Parameter) AddListener(l ParameterListener) { p.listeners.add(l) }

// RemoveListener unregisters l
func (p *Parameter) RemoveListener(l ParameterListener) { p.listeners.remove(l) }
