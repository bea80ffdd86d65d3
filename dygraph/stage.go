package dygraph

import (
	"math"

	"github.com/sarchlab/dynet/sim"
)

// stage binds the node ids of a TVG to the nodes of a topology. Links added
// by players are wired, so that the link resolver never touches them.
type stage struct {
	topo *sim.Topology
	tvg  *TVG
}

func newStage(tvg *TVG, topo *sim.Topology) stage {
	topo.SetWirelessStatus(false)

	s := stage{topo: topo, tvg: tvg}
	s.placeNodes()

	return s
}

// placeNodes inserts the missing nodes on a circle in the middle of the
// topology.
func (s stage) placeNodes() {
	ids := s.tvg.Nodes()
	cx, cy := s.topo.Width()/2, s.topo.Height()/2
	radius := math.Min(cx, cy) * 0.8

	for i, id := range ids {
		if s.topo.FindNodeByID(id) != nil {
			continue
		}

		angle := 2 * math.Pi * float64(i) / float64(len(ids))
		n := s.topo.NewNodeOfModel(sim.DefaultModel)
		n.SetID(id)
		s.topo.AddNodeAt(sim.Point{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		}, n)
	}
}

func (s stage) endpoints(l *TVLink) (*sim.Node, *sim.Node, bool) {
	src := s.topo.FindNodeByID(l.Source)
	dst := s.topo.FindNodeByID(l.Destination)

	return src, dst, src != nil && dst != nil
}

func (s stage) isPresent(l *TVLink) bool {
	src, dst, ok := s.endpoints(l)
	if !ok {
		return false
	}

	if l.Directed {
		return src.DirectedLinkTo(dst) != nil
	}

	return s.topo.Link(src, dst) != nil
}

func (s stage) add(l *TVLink) {
	src, dst, ok := s.endpoints(l)
	if !ok {
		s.topo.Logger().Warn().Stringer("link", l).Msg("link endpoint missing")
		return
	}

	if l.Directed {
		s.topo.AddLink(sim.NewDirectedLink(src, dst))
		return
	}

	s.topo.AddLink(sim.NewLink(src, dst))
}

func (s stage) remove(l *TVLink) {
	if !s.isPresent(l) {
		return
	}

	src, dst, _ := s.endpoints(l)
	if l.Directed {
		s.topo.RemoveLink(sim.NewDirectedLink(src, dst))
		return
	}

	s.topo.RemoveLink(sim.NewLink(src, dst))
}

// setPresence adds or removes the link so that its presence matches.
func (s stage) setPresence(l *TVLink, present bool) {
	switch {
	case present && !s.isPresent(l):
		s.add(l)
	case !present && s.isPresent(l):
		s.remove(l)
	}
}
