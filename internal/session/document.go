package session

import (
	"io"
	"os"
	"path/filepath"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type document struct {
	Devices []deviceDoc `yaml:"devices"`
	Nodes   []nodeDoc   `yaml:"nodes"`
	Maps    []mapDoc    `yaml:"maps"`
}

type deviceDoc struct {
	ID       uuid.UUID    `yaml:"id"`
	Name     string       `yaml:"name"`
	Input    string       `yaml:"input,omitempty"`
	Controls []controlDoc `yaml:"controls,omitempty"`
}

type controlDoc struct {
	ID            uuid.UUID `yaml:"id"`
	Name          string    `yaml:"name"`
	Event         EventType `yaml:"event"`
	Number        int       `yaml:"number"`
	Channel       int       `yaml:"channel,omitempty"`
	Momentary     bool      `yaml:"momentary,omitempty"`
	ToggleValue   *int      `yaml:"toggle_value,omitempty"`
	ToggleMode    string    `yaml:"toggle_mode,omitempty"`
	InverseToggle bool      `yaml:"inverse_toggle,omitempty"`
}

type nodeDoc struct {
	ID         uuid.UUID  `yaml:"id"`
	Name       string     `yaml:"name"`
	Enabled    *bool      `yaml:"enabled,omitempty"`
	Bypass     bool       `yaml:"bypass,omitempty"`
	Mute       bool       `yaml:"mute,omitempty"`
	Parameters []paramDoc `yaml:"parameters,omitempty"`
}

type paramDoc struct {
	Name  string  `yaml:"name"`
	Value float32 `yaml:"value"`
}

type mapDoc struct {
	Controller uuid.UUID `yaml:"controller"`
	Control    uuid.UUID `yaml:"control"`
	Node       uuid.UUID `yaml:"node"`
	Parameter  int       `yaml:"parameter"`
}

// Decode reads a YAML session. Nodes become loaded processors with the
// stored parameter values and toggles.
func Decode(r io.Reader) (*Session, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode session")
	}

	s := New(graph.New())
	for _, nd := range doc.Nodes {
		if !s.graph.AddNode(nd.node()) {
			return nil, errors.Errorf("duplicate node %s", nd.ID)
		}
	}
	for _, dd := range doc.Devices {
		if !s.AddDevice(dd.device()) {
			return nil, errors.Errorf("duplicate device %s", dd.ID)
		}
	}
	// dangling maps are kept; refresh skips them
	for _, md := range doc.Maps {
		s.AddMap(ControllerMap(md))
	}
	return s, nil
}

// Encode writes s as YAML
func Encode(w io.Writer, s *Session) error {
	doc := document{}
	for _, n := range s.graph.Nodes() {
		doc.Nodes = append(doc.Nodes, encodeNode(n))
	}
	for _, d := range s.Devices() {
		doc.Devices = append(doc.Devices, encodeDevice(d))
	}
	for _, m := range s.Maps() {
		doc.Maps = append(doc.Maps, mapDoc(m))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(enc.Close(), "encode session")
}

// Load reads the session at path
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open session %s", path)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return s, nil
}

// Save writes the session to path, creating parent directories
func Save(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create session %s", path)
	}
	if err := Encode(f, s); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close session %s", path)
}

// DecodeDevice reads a single controller device in the session's device
// format. The device and its controls get fresh IDs so an imported file
// never clashes with devices already in a session.
func DecodeDevice(r io.Reader) (*ControllerDevice, error) {
	var dd deviceDoc
	if err := yaml.NewDecoder(r).Decode(&dd); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty device document")
		}
		return nil, errors.Wrap(err, "decode device")
	}
	dd.ID = uuid.New()
	for i := range dd.Controls {
		dd.Controls[i].ID = uuid.New()
	}
	return dd.device(), nil
}

// EncodeDevice writes d in the format DecodeDevice reads
func EncodeDevice(w io.Writer, d *ControllerDevice) error {
	dd := encodeDevice(d)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&dd); err != nil {
		return errors.Wrap(err, "encode device")
	}
	return errors.Wrap(enc.Close(), "encode device")
}

func (nd nodeDoc) node() *graph.Node {
	names := make([]string, len(nd.Parameters))
	for i, p := range nd.Parameters {
		names[i] = p.Name
	}
	proc := graph.NewProcessor(nd.Name, names...)
	for i, p := range nd.Parameters {
		proc.Parameter(i).SetValueNotifyingHost(p.Value)
	}
	if nd.Enabled != nil {
		proc.SetEnabled(*nd.Enabled)
	}
	proc.SuspendProcessing(nd.Bypass)
	proc.SetMuted(nd.Mute)

	id := nd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return graph.NewNodeWithID(id, nd.Name, proc)
}

func encodeNode(n *graph.Node) nodeDoc {
	enabled := n.IsEnabled()
	nd := nodeDoc{
		ID:      n.ID(),
		Name:    n.Name(),
		Enabled: &enabled,
		Bypass:  n.IsBypassed(),
		Mute:    n.IsMuted(),
	}
	if proc := n.Object(); proc != nil {
		for _, p := range proc.Parameters() {
			nd.Parameters = append(nd.Parameters, paramDoc{Name: p.Name(), Value: p.Value()})
		}
	}
	return nd
}

func (dd deviceDoc) device() *ControllerDevice {
	id := dd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	d := NewControllerDeviceWithID(id, dd.Name, dd.Input)
	for _, cd := range dd.Controls {
		d.AddControl(cd.control())
	}
	return d
}

func (cd controlDoc) control() *Control {
	id := cd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	c := NewControlWithID(id, cd.Name)
	c.eventType = EventController
	if cd.Event == EventNote {
		c.eventType = EventNote
	}
	c.eventID = clamp(cd.Number, 0, maxEventID)
	c.channel = clamp(cd.Channel, 0, maxChannel)
	c.momentary = cd.Momentary
	if cd.ToggleValue != nil {
		c.toggleValue = clamp(*cd.ToggleValue, 0, maxEventID)
	}
	c.toggleMode = ParseToggleMode(cd.ToggleMode)
	c.inverseToggle = cd.InverseToggle
	return c
}

func encodeDevice(d *ControllerDevice) deviceDoc {
	dd := deviceDoc{ID: d.ID(), Name: d.Name(), Input: d.InputDevice()}
	for _, c := range d.Controls() {
		tv := c.ToggleValue()
		dd.Controls = append(dd.Controls, controlDoc{
			ID:            c.ID(),
			Name:          c.Name(),
			Event:         c.EventType(),
			Number:        c.EventID(),
			Channel:       c.Channel(),
			Momentary:     c.IsMomentary(),
			ToggleValue:   &tv,
			ToggleMode:    string(c.ToggleMode()),
			InverseToggle: c.InverseToggle(),
		})
	}
	return dd
}
