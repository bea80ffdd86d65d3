package sim

import "fmt"

// LinkType tells whether a link is an arc or an edge.
type LinkType int

// Link types.
const (
	Undirected LinkType = iota
	Directed
)

func (t LinkType) String() string {
	if t == Directed {
		return "directed"
	}

	return "undirected"
}

// LinkMode tells whether a link is maintained by the link resolver or was
// added explicitly.
type LinkMode int

// Link modes.
const (
	Wired LinkMode = iota
	Wireless
)

func (m LinkMode) String() string {
	if m == Wireless {
		return "wireless"
	}

	return "wired"
}

// A Link connects two nodes. A directed link (an arc) belongs to the outgoing
// links of its source. An undirected link (an edge) exists in a topology only
// while both arcs between its endpoints exist.
type Link struct {
	Source      *Node
	Destination *Node
	Type        LinkType
	Mode        LinkMode
}

// NewLink creates an undirected wired link.
func NewLink(a, b *Node) *Link {
	return &Link{Source: a, Destination: b, Type: Undirected, Mode: Wired}
}

// NewDirectedLink creates a directed wired link from src to dst.
func NewDirectedLink(src, dst *Node) *Link {
	return &Link{Source: src, Destination: dst, Type: Directed, Mode: Wired}
}

// WithMode sets the mode of the link and returns it.
func (l *Link) WithMode(m LinkMode) *Link {
	l.Mode = m
	return l
}

// IsDirected tells if the link is an arc.
func (l *Link) IsDirected() bool {
	return l.Type == Directed
}

// IsWireless tells if the link is maintained by the link resolver.
func (l *Link) IsWireless() bool {
	return l.Mode == Wireless
}

// Endpoints returns the two nodes of the link.
func (l *Link) Endpoints() (*Node, *Node) {
	return l.Source, l.Destination
}

// Contains tells if n is one of the endpoints.
func (l *Link) Contains(n *Node) bool {
	return l.Source == n || l.Destination == n
}

// OtherEndpoint returns the endpoint that is not n.
func (l *Link) OtherEndpoint(n *Node) *Node {
	if l.Source == n {
		return l.Destination
	}

	return l.Source
}

// Length returns the distance between the endpoints.
func (l *Link) Length() float64 {
	return l.Source.Distance(l.Destination)
}

// Equals compares endpoints and type. Undirected links are equal regardless
// of endpoint order.
func (l *Link) Equals(o *Link) bool {
	if o == nil || l.Type != o.Type {
		return false
	}

	if l.Source == o.Source && l.Destination == o.Destination {
		return true
	}

	return l.Type == Undirected &&
		l.Source == o.Destination && l.Destination == o.Source
}

func (l *Link) String() string {
	sep := "<-->"
	if l.Type == Directed {
		sep = "-->"
	}

	return fmt.Sprintf("%d %s %d", l.Source.ID(), sep, l.Destination.ID())
}
