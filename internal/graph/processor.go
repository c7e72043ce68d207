package graph

import "sync/atomic"

// ProcessorListener observes the node level toggles of a processor
type ProcessorListener interface {
	EnablementChanged(p *Processor)
	BypassChanged(p *Processor)
	MuteChanged(p *Processor)
}

// Processor is the live runtime object behind a node
type Processor struct {
	name       string
	parameters []*Parameter

	enabled   atomic.Bool
	suspended atomic.Bool
	muted     atomic.Bool

	listeners listenerSet[ProcessorListener]
}

// NewProcessor creates an enabled processor with the named parameters
func NewProcessor(name string, parameterNames ...string) *Processor {
	p := &Processor{name: name}
	p.parameters = make([]*Parameter, len(parameterNames))
	for i, pn := range parameterNames {
		p.parameters[i] = newParameter(i, pn)
	}
	p.enabled.Store(true)
	return p
}

// Name returns the processor name
func (p *Processor) Name() string { return p.name }

// Parameters returns the parameter list. It never changes after construction.
func (p *Processor) Parameters() []*Parameter { return p.parameters }

// Parameter returns the parameter at index or nil when out of range
func (p *Processor) Parameter(index int) *Parameter {
	if index < 0 || index >= len(p.parameters) {
		return nil
	}
	return p.parameters[index]
}

// ContainsParameter reports whether index is a real or pseudo parameter
func (p *Processor) ContainsParameter(index int) bool {
	return IsPseudoParameter(index) || (index >= 0 && index < len(p.parameters))
}

// SetEnabled turns the processor on or off
func (p *Processor) SetEnabled(enabled bool) {
	if p.enabled.Swap(enabled) == enabled {
		return
	}
	p.listeners.each(func(l ProcessorListener) { l.EnablementChanged(p) })
}

// IsEnabled reports whether the processor is enabled
func (p *Processor) IsEnabled() bool { return p.enabled.Load() }

// SuspendProcessing bypasses the processor while suspended is true
func (p *Processor) SuspendProcessing(suspended bool) {
	if p.suspended.Swap(suspended) == suspended {
		return
	}
	p.listeners.each(func(l ProcessorListener) { l.BypassChanged(p) })
}

// IsSuspended reports whether processing is suspended
func (p *Processor) IsSuspended() bool { return p.suspended.Load() }

// SetMuted silences the processor output
func (p *Processor) SetMuted(muted bool) {
	if p.muted.Swap(muted) == muted {
		return
	}
	p.listeners.each(func(l ProcessorListener) { l.MuteChanged(p) })
}

// IsMuted reports whether the output is muted
func (p *Processor) IsMuted() bool { return p.muted.Load() }

// AddListener registers l
func (p *Processor) AddListener(l ProcessorListener) { p.listeners.add(l) }

// RemoveListener unregisters l
func (p *Processor) RemoveListener(l ProcessorListener) { p.listeners.remove(l) }
