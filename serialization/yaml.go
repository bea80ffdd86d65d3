package serialization

import (
	"fmt"

	"github.com/sarchlab/dynet/sim"
	"gopkg.in/yaml.v3"
)

type topologyDoc struct {
	Defaults defaultsDoc `yaml:"topology"`
	Nodes    []nodeDoc   `yaml:"nodes"`
	Links    []linkDoc   `yaml:"links,omitempty"`
}

type defaultsDoc struct {
	CommunicationRange float64 `yaml:"communication_range"`
	SensingRange       float64 `yaml:"sensing_range"`
	Width              float64 `yaml:"width"`
	Height             float64 `yaml:"height"`
	Wireless           bool    `yaml:"wireless"`
}

type nodeDoc struct {
	ID                 int      `yaml:"id"`
	X                  float64  `yaml:"x"`
	Y                  float64  `yaml:"y"`
	Model              string   `yaml:"model,omitempty"`
	CommunicationRange *float64 `yaml:"communication_range,omitempty"`
	SensingRange       *float64 `yaml:"sensing_range,omitempty"`
	Wireless           *bool    `yaml:"wireless,omitempty"`
}

type linkDoc struct {
	Source      int  `yaml:"source"`
	Destination int  `yaml:"destination"`
	Directed    bool `yaml:"directed,omitempty"`
	Wireless    bool `yaml:"wireless,omitempty"`
}

// YAML is a Serializer using YAML documents. Wireless links are exported for
// reference, but are recomputed by the link resolver on import.
type YAML struct{}

// Export implements Serializer.
func (YAML) Export(t *sim.Topology) ([]byte, error) {
	doc := topologyDoc{
		Defaults: defaultsDoc{
			CommunicationRange: t.CommunicationRange(),
			SensingRange:       t.SensingRange(),
			Width:              t.Width(),
			Height:             t.Height(),
			Wireless:           t.IsWirelessEnabled(),
		},
	}

	for _, n := range t.Nodes() {
		doc.Nodes = append(doc.Nodes, exportNode(t, n))
	}

	for _, l := range t.Links() {
		doc.Links = append(doc.Links, exportLink(l))
	}

	for _, l := range t.DirectedLinks() {
		if t.Link(l.Source, l.Destination) == nil {
			doc.Links = append(doc.Links, exportLink(l))
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding topology: %w", err)
	}

	return data, nil
}

func exportNode(t *sim.Topology, n *sim.Node) nodeDoc {
	d := nodeDoc{
		ID:    n.ID(),
		X:     n.Location().X,
		Y:     n.Location().Y,
		Model: n.Model(),
	}

	if r := n.CommunicationRange(); r != t.CommunicationRange() {
		d.CommunicationRange = &r
	}

	if r := n.SensingRange(); r != t.SensingRange() {
		d.SensingRange = &r
	}

	if w := n.IsWirelessEnabled(); w != t.IsWirelessEnabled() {
		d.Wireless = &w
	}

	if d.Model == sim.DefaultModel {
		d.Model = ""
	}

	return d
}

func exportLink(l *sim.Link) linkDoc {
	return linkDoc{
		Source:      l.Source.ID(),
		Destination: l.Destination.ID(),
		Directed:    l.IsDirected(),
		Wireless:    l.IsWireless(),
	}
}

// Import implements Serializer.
func (YAML) Import(t *sim.Topology, data []byte) error {
	var doc topologyDoc

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding topology: %w", err)
	}

	if err := doc.validate(); err != nil {
		return err
	}

	t.Clear()
	t.SetDimensions(doc.Defaults.Width, doc.Defaults.Height)
	t.SetCommunicationRange(doc.Defaults.CommunicationRange)
	t.SetSensingRange(doc.Defaults.SensingRange)
	t.SetWirelessStatus(doc.Defaults.Wireless)

	byID := make(map[int]*sim.Node, len(doc.Nodes))

	for _, d := range doc.Nodes {
		byID[d.ID] = importNode(t, d)
	}

	for _, d := range doc.Links {
		if d.Wireless {
			continue
		}

		src, dst := byID[d.Source], byID[d.Destination]
		if d.Directed {
			t.AddLink(sim.NewDirectedLink(src, dst))
		} else {
			t.AddLink(sim.NewLink(src, dst))
		}
	}

	return nil
}

func importNode(t *sim.Topology, d nodeDoc) *sim.Node {
	model := d.Model
	if model == "" {
		model = sim.DefaultModel
	}

	n := t.NewNodeOfModel(model)
	n.SetID(d.ID)

	if d.CommunicationRange != nil {
		n.SetCommunicationRange(*d.CommunicationRange)
	}

	if d.SensingRange != nil {
		n.SetSensingRange(*d.SensingRange)
	}

	t.AddNodeAt(sim.Point{X: d.X, Y: d.Y}, n)

	if d.Wireless != nil {
		n.SetWirelessStatus(*d.Wireless)
	}

	return n
}

func (doc topologyDoc) validate() error {
	if doc.Defaults.CommunicationRange < 0 || doc.Defaults.SensingRange < 0 {
		return fmt.Errorf("%w: topology defaults", sim.ErrInvalidRange)
	}

	ids := make(map[int]bool, len(doc.Nodes))

	for _, n := range doc.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateNode, n.ID)
		}

		ids[n.ID] = true

		for _, r := range []*float64{n.CommunicationRange, n.SensingRange} {
			if r != nil && *r < 0 {
				return fmt.Errorf("%w: node %d", sim.ErrInvalidRange, n.ID)
			}
		}
	}

	for _, l := range doc.Links {
		for _, id := range []int{l.Source, l.Destination} {
			if !ids[id] {
				return fmt.Errorf("%w: link %d-%d refers to %d",
					sim.ErrNodeNotFound, l.Source, l.Destination, id)
			}
		}

		if l.Source == l.Destination {
			return fmt.Errorf("%w: self link on %d", ErrInvalidLink, l.Source)
		}
	}

	return nil
}
