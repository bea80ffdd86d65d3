package sim

import (
	"fmt"
	"slices"
)

// AddLink inserts a link and notifies the connectivity listeners.
//
// A directed link is stored as an arc. If the reverse arc exists, the
// matching undirected link is created as well. An undirected link creates
// the missing arcs in both directions, then the edge. Links that already
// exist only get their mode updated and are not notified again.
func (t *Topology) AddLink(l *Link) {
	t.addLink(l, false)
}

// AddLinkSilently works as AddLink without notifying anyone.
func (t *Topology) AddLinkSilently(l *Link) {
	t.addLink(l, true)
}

func (t *Topology) addLink(l *Link, silent bool) {
	t.mustOwnEndpoints(l)

	t.Pause()
	defer t.Resume()

	if l.Type == Directed {
		t.addArc(l, silent, true)
		return
	}

	t.addArc(&Link{
		Source:      l.Source,
		Destination: l.Destination,
		Type:        Directed,
		Mode:        l.Mode,
	}, silent, false)
	t.addArc(&Link{
		Source:      l.Destination,
		Destination: l.Source,
		Type:        Directed,
		Mode:        l.Mode,
	}, silent, false)

	if existing := t.edgeBetween(l.Source, l.Destination); existing != nil {
		existing.Mode = l.Mode
		return
	}

	t.storeEdge(l, silent)
}

// addArc stores the arc unless one already connects the same endpoints. With
// synthesize set, it also creates the edge when the reverse arc exists.
func (t *Topology) addArc(arc *Link, silent, synthesize bool) {
	src, dst := arc.Source, arc.Destination

	if existing := src.outIndex[dst]; existing != nil {
		existing.Mode = arc.Mode
		return
	}

	src.addOutLink(arc)
	t.arcs = append(t.arcs, arc)

	if !silent {
		t.notifyArcAdded(arc)
	}

	if synthesize && dst.outIndex[src] != nil && t.edgeBetween(src, dst) == nil {
		t.storeEdge(&Link{
			Source:      src,
			Destination: dst,
			Type:        Undirected,
			Mode:        arc.Mode,
		}, silent)
	}
}

func (t *Topology) storeEdge(edge *Link, silent bool) {
	t.edges = append(t.edges, edge)
	t.indexEdge(edge.Source, edge.Destination, edge)
	t.indexEdge(edge.Destination, edge.Source, edge)

	if !silent {
		t.notifyLinkAdded(edge)
	}
}

func (t *Topology) indexEdge(a, b *Node, edge *Link) {
	m := t.edgeIndex[a]
	if m == nil {
		m = make(map[*Node]*Link)
		t.edgeIndex[a] = m
	}

	m[b] = edge
}

func (t *Topology) unindexEdge(a, b *Node) {
	delete(t.edgeIndex[a], b)
	if len(t.edgeIndex[a]) == 0 {
		delete(t.edgeIndex, a)
	}
}

// RemoveLink removes a link and notifies the connectivity listeners with the
// stored links. Removing a directed link also removes the undirected link
// between the same nodes. Removing an undirected link removes both arcs.
//
// It panics with ErrLinkNotFound if a required arc does not exist.
func (t *Topology) RemoveLink(l *Link) {
	t.Pause()
	defer t.Resume()

	if l.Type == Directed {
		arc := t.mustFindArc(l.Source, l.Destination)
		t.removeArc(arc)

		if edge := t.edgeBetween(l.Source, l.Destination); edge != nil {
			t.removeEdge(edge)
		}

		return
	}

	arc1 := t.mustFindArc(l.Source, l.Destination)
	arc2 := t.mustFindArc(l.Destination, l.Source)

	t.removeArc(arc1)
	t.removeArc(arc2)

	if edge := t.edgeBetween(l.Source, l.Destination); edge != nil {
		t.removeEdge(edge)
	}
}

func (t *Topology) mustFindArc(src, dst *Node) *Link {
	arc := src.outIndex[dst]
	if arc == nil {
		panic(fmt.Errorf("%w: no arc from %s to %s", ErrLinkNotFound, src, dst))
	}

	return arc
}

func (t *Topology) mustOwnEndpoints(l *Link) {
	if l.Source.topo != t || l.Destination.topo != t {
		panic(fmt.Errorf("%w: link %s has an endpoint outside the topology",
			ErrNodeNotFound, l))
	}
}

func (t *Topology) removeArc(arc *Link) {
	arc.Source.removeOutLink(arc.Destination)
	t.arcs = slices.DeleteFunc(t.arcs, func(a *Link) bool { return a == arc })
	t.notifyArcRemoved(arc)
}

func (t *Topology) removeEdge(edge *Link) {
	t.unindexEdge(edge.Source, edge.Destination)
	t.unindexEdge(edge.Destination, edge.Source)
	t.edges = slices.DeleteFunc(t.edges, func(e *Link) bool { return e == edge })
	t.notifyLinkRemoved(edge)
}

func (t *Topology) edgeBetween(a, b *Node) *Link {
	return t.edgeIndex[a][b]
}

// Links returns a copy of the undirected links.
func (t *Topology) Links() []*Link {
	return slices.Clone(t.edges)
}

// DirectedLinks returns a copy of the arcs.
func (t *Topology) DirectedLinks() []*Link {
	return slices.Clone(t.arcs)
}

// Link returns the undirected link between a and b, or nil.
func (t *Topology) Link(a, b *Node) *Link {
	return t.edgeBetween(a, b)
}

// DirectedLink returns the arc from src to dst, or nil.
func (t *Topology) DirectedLink(src, dst *Node) *Link {
	return src.outIndex[dst]
}

// HasDirectedLinks tells whether some arc has no reverse arc.
func (t *Topology) HasDirectedLinks() bool {
	return len(t.arcs) != 2*len(t.edges)
}

// ClearLinks removes every link.
func (t *Topology) ClearLinks() {
	t.Pause()
	defer t.Resume()

	for _, l := range slices.Clone(t.edges) {
		t.RemoveLink(l)
	}

	for _, l := range slices.Clone(t.arcs) {
		t.RemoveLink(l)
	}
}
