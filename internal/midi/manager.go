package midi

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2"
)

// HostInput is the device selector for messages handed over by the host
// when running as a plugin instead of reading hardware ports.
const HostInput = "__host__"

// ErrPortNotFound is returned when a named input port does not exist
var ErrPortNotFound = errors.New("input port not found")

// InputCallback receives messages from subscribed input devices
type InputCallback interface {
	HandleIncomingMidiMessage(source string, msg Message)
}

type callbackInfo struct {
	deviceID string
	callback InputCallback
	consumer bool
}

// listenFunc opens a port and forwards its messages to recv until stop is called
type listenFunc func(port string, recv func(msg midi.Message, timestampms int32)) (stop func(), err error)

// Manager handles MIDI input ports and fans their messages out to callbacks
type Manager struct {
	mu sync.RWMutex

	// callbacksMu is held for reading while a message is delivered, so
	// RemoveInputCallback returns only after in-flight deliveries finished.
	callbacksMu sync.RWMutex
	callbacks   []callbackInfo

	portsMu sync.Mutex
	ports   map[string]func()

	listen listenFunc
	log    zerolog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a new MIDI manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		ports: make(map[string]func()),
		log:   zerolog.Nop(),
	}
	m.listen = m.listenToPort
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close stops every port listener and cleans up the MIDI driver
func (m *Manager) Close() {
	m.portsMu.Lock()
	for name, stop := range m.ports {
		stop()
		delete(m.ports, name)
	}
	m.portsMu.Unlock()

	m.callbacksMu.Lock()
	m.callbacks = nil
	m.callbacksMu.Unlock()

	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// AddInputCallback subscribes cb to messages from deviceID. An empty deviceID
// receives every port, HostInput receives ProcessHostMessages. A non-consuming
// subscription never hides a message from subscribers registered after it.
func (m *Manager) AddInputCallback(deviceID string, cb InputCallback, nonConsuming bool) error {
	if cb == nil {
		return errors.New("nil input callback")
	}

	m.removeCallback(deviceID, cb)

	if err := m.openPort(deviceID); err != nil {
		return err
	}

	m.callbacksMu.Lock()
	m.callbacks = append(m.callbacks, callbackInfo{
		deviceID: deviceID,
		callback: cb,
		consumer: !nonConsuming,
	})
	m.callbacksMu.Unlock()
	return nil
}

// RemoveInputCallback removes every subscription of cb. Deliveries already
// running complete before it returns.
func (m *Manager) RemoveInputCallback(cb InputCallback) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()

	kept := m.callbacks[:0]
	for _, info := range m.callbacks {
		if info.callback != cb {
			kept = append(kept, info)
		}
	}
	clearTail(m.callbacks, len(kept))
	m.callbacks = kept
}

func (m *Manager) removeCallback(deviceID string, cb InputCallback) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()

	kept := m.callbacks[:0]
	for _, info := range m.callbacks {
		if info.callback != cb || info.deviceID != deviceID {
			kept = append(kept, info)
		}
	}
	clearTail(m.callbacks, len(kept))
	m.callbacks = kept
}

func clearTail(infos []callbackInfo, from int) {
	for i := from; i < len(infos); i++ {
		infos[i] = callbackInfo{}
	}
}

// ProcessHostMessages delivers messages coming from the host to HostInput
// subscribers on the calling goroutine.
func (m *Manager) ProcessHostMessages(msgs ...Message) {
	for _, msg := range msgs {
		if msg.IsActiveSense() {
			continue
		}
		m.deliver(HostInput, msg)
	}
}

// NumCallbacks returns the number of live subscriptions
func (m *Manager) NumCallbacks() int {
	m.callbacksMu.RLock()
	defer m.callbacksMu.RUnlock()
	return len(m.callbacks)
}

func (m *Manager) dispatch(port string, raw midi.Message, timestampms int32) {
	msg := FromMIDI(raw, timestampms)
	if msg.IsActiveSense() {
		return
	}
	m.deliver(port, msg)
}

func (m *Manager) deliver(source string, msg Message) {
	m.callbacksMu.RLock()
	defer m.callbacksMu.RUnlock()

	for _, info := range m.callbacks {
		if info.deviceID != "" && info.deviceID != source {
			continue
		}
		info.callback.HandleIncomingMidiMessage(source, msg)
		if info.consumer {
			return
		}
	}
}

func (m *Manager) openPort(name string) error {
	if name == "" || name == HostInput {
		return nil
	}

	m.portsMu.Lock()
	defer m.portsMu.Unlock()

	if _, ok := m.ports[name]; ok {
		return nil
	}

	stop, err := m.listen(name, func(msg midi.Message, timestampms int32) {
		m.dispatch(name, msg, timestampms)
	})
	if err != nil {
		return err
	}

	m.ports[name] = stop
	m.log.Info().Str("port", name).Msg("started listening")
	return nil
}

// listenToPort is the gomidi backed listenFunc
func (m *Manager) listenToPort(name string, recv func(midi.Message, int32)) (func(), error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, in := range midi.GetInPorts() {
		if in.String() != name {
			continue
		}
		stop, err := midi.ListenTo(in, recv)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to start listening on %s", name)
		}
		return stop, nil
	}
	return nil, errors.Wrapf(ErrPortNotFound, "%s", name)
}
