package sim

import (
	"fmt"
	"slices"
)

// NoID is the id of a node that has not been inserted into a topology yet.
const NoID = -1

const unsetRange = -1.0

// A Node is an entity of the simulated network. Nodes are created by the
// user and inserted into a Topology, which from then on is the only owner of
// the node's links, sensed nodes and message queues.
type Node struct {
	id           int
	location     Point
	commRange    float64
	sensingRange float64
	wireless     bool
	model        string

	// Behavior carries the user algorithm. See behavior.go for the callbacks
	// the topology looks for.
	Behavior any

	outLinks  []*Link
	outIndex  map[*Node]*Link
	sensed    []*Node
	sendQueue []*Message
	mailbox   []*Message
	dying     bool

	topo *Topology
}

// NewNode creates a wireless node without id, located at the origin. Its
// ranges are filled from the topology defaults upon insertion.
func NewNode() *Node {
	return &Node{
		id:           NoID,
		commRange:    unsetRange,
		sensingRange: unsetRange,
		wireless:     true,
		outIndex:     make(map[*Node]*Link),
	}
}

// WithBehavior sets the behavior and returns the node.
func (n *Node) WithBehavior(b any) *Node {
	n.Behavior = b
	return n
}

// ID returns the identifier of the node.
func (n *Node) ID() int {
	return n.id
}

// SetID changes the identifier of the node.
func (n *Node) SetID(id int) {
	n.id = id
}

// Model returns the name of the model the node was built from.
func (n *Node) Model() string {
	return n.model
}

// Topology returns the topology the node belongs to, or nil.
func (n *Node) Topology() *Topology {
	return n.topo
}

// Time returns the current round of the topology, or 0 if detached.
func (n *Node) Time() int {
	if n.topo == nil {
		return 0
	}

	return n.topo.Time()
}

// Location returns the node position.
func (n *Node) Location() Point {
	return n.location
}

// SetLocation moves the node.
func (n *Node) SetLocation(p Point) {
	n.location = p

	if n.topo != nil {
		n.topo.nodeMoved(n)
	}
}

// Translate moves the node by the given offsets.
func (n *Node) Translate(dx, dy float64) {
	n.SetLocation(n.location.Add(dx, dy))
}

// Distance returns the distance to another node.
func (n *Node) Distance(o *Node) float64 {
	return n.location.Distance(o.location)
}

// CommunicationRange returns the radius within which the node is heard.
func (n *Node) CommunicationRange() float64 {
	return n.commRange
}

// SetCommunicationRange changes the communication range.
func (n *Node) SetCommunicationRange(r float64) {
	n.commRange = r
	n.touch()
}

// SensingRange returns the radius within which the node senses others.
func (n *Node) SensingRange() float64 {
	return n.sensingRange
}

// SetSensingRange changes the sensing range.
func (n *Node) SetSensingRange(r float64) {
	n.sensingRange = r
	n.touch()
}

// IsWirelessEnabled tells if the node takes part in wireless links.
func (n *Node) IsWirelessEnabled() bool {
	return n.wireless
}

// SetWirelessStatus enables or disables wireless links.
func (n *Node) SetWirelessStatus(enabled bool) {
	n.wireless = enabled
	n.touch()
}

func (n *Node) touch() {
	if n.topo != nil {
		n.topo.touch(n)
	}
}

// OutLinks returns the arcs leaving the node.
func (n *Node) OutLinks() []*Link {
	return slices.Clone(n.outLinks)
}

// DirectedLinkTo returns the arc from n to o, or nil.
func (n *Node) DirectedLinkTo(o *Node) *Link {
	return n.outIndex[o]
}

// LinkTo returns the undirected link between n and o, or nil.
func (n *Node) LinkTo(o *Node) *Link {
	if n.topo == nil {
		return nil
	}

	return n.topo.edgeBetween(n, o)
}

// Links returns the undirected links of the node.
func (n *Node) Links() []*Link {
	links := make([]*Link, 0, len(n.outLinks))
	for _, arc := range n.outLinks {
		if l := n.LinkTo(arc.Destination); l != nil {
			links = append(links, l)
		}
	}

	return links
}

// Neighbors returns the nodes sharing an undirected link with n.
func (n *Node) Neighbors() []*Node {
	neighbors := make([]*Node, 0, len(n.outLinks))
	for _, arc := range n.outLinks {
		if arc.Destination.outIndex[n] != nil {
			neighbors = append(neighbors, arc.Destination)
		}
	}

	return neighbors
}

// OutNeighbors returns the destinations of the arcs leaving n.
func (n *Node) OutNeighbors() []*Node {
	neighbors := make([]*Node, len(n.outLinks))
	for i, arc := range n.outLinks {
		neighbors[i] = arc.Destination
	}

	return neighbors
}

// InNeighbors returns the sources of the arcs reaching n.
func (n *Node) InNeighbors() []*Node {
	if n.topo == nil {
		return nil
	}

	var neighbors []*Node
	for _, o := range n.topo.nodes {
		if o.outIndex[n] != nil {
			neighbors = append(neighbors, o)
		}
	}

	return neighbors
}

// SensedNodes returns the nodes currently within sensing range.
func (n *Node) SensedNodes() []*Node {
	return slices.Clone(n.sensed)
}

// Send queues a message for o. It returns nil if the node is not part of a
// topology.
func (n *Node) Send(o *Node, content any) *Message {
	return n.SendWithFlag(o, content, "")
}

// SendWithFlag queues a message carrying a flag string.
func (n *Node) SendWithFlag(o *Node, content any, flag string) *Message {
	if n.topo == nil {
		return nil
	}

	return n.topo.messages.send(n, o, content, flag)
}

// SendAll queues a copy of the message for every out-neighbor.
func (n *Node) SendAll(content any) []*Message {
	if n.topo == nil {
		return nil
	}

	msgs := make([]*Message, 0, len(n.outLinks))
	for _, o := range n.OutNeighbors() {
		msgs = append(msgs, n.topo.messages.send(n, o, content, ""))
	}

	return msgs
}

// Mailbox returns the delivered messages not consumed yet.
func (n *Node) Mailbox() []*Message {
	return slices.Clone(n.mailbox)
}

// ConsumeMailbox returns the delivered messages and empties the mailbox.
func (n *Node) ConsumeMailbox() []*Message {
	msgs := n.mailbox
	n.mailbox = nil

	return msgs
}

// ClearMailbox drops every delivered message.
func (n *Node) ClearMailbox() {
	n.mailbox = nil
}

// Die flags the node for removal at the end of the current round.
func (n *Node) Die() {
	n.dying = true
}

// IsDying tells if the node will be removed at the end of the round.
func (n *Node) IsDying() bool {
	return n.dying
}

func (n *Node) addOutLink(l *Link) {
	n.outLinks = append(n.outLinks, l)
	n.outIndex[l.Destination] = l
}

func (n *Node) removeOutLink(dst *Node) {
	delete(n.outIndex, dst)
	n.outLinks = slices.DeleteFunc(n.outLinks, func(l *Link) bool {
		return l.Destination == dst
	})
}

func (n *Node) senses(o *Node) bool {
	return slices.Contains(n.sensed, o)
}

func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}

	return fmt.Sprintf("node %d", n.id)
}
