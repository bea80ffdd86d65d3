package sim

import "slices"

// touch records that the node changed. Depending on the refresh mode, its
// wireless links and sensed nodes are updated now or at the next round.
func (t *Topology) touch(n *Node) {
	if n.topo != t {
		return
	}

	if t.refreshMode == RefreshEventBased {
		t.update(n)
		return
	}

	if !t.pendingSet[n] {
		t.pendingSet[n] = true
		t.pending = append(t.pending, n)
	}
}

func (t *Topology) touchAll() {
	for _, n := range slices.Clone(t.nodes) {
		t.touch(n)
	}
}

func (t *Topology) processPendingUpdates() {
	pending := t.pending
	t.pending = nil
	clear(t.pendingSet)

	for _, n := range pending {
		if n.topo == t {
			t.update(n)
		}
	}
}

func (t *Topology) update(n *Node) {
	t.updateWirelessLinks(n)
	t.updateSensedNodes(n)
}

// updateWirelessLinks makes the wireless arcs from and to n agree with the
// link resolver. Wired arcs are left alone.
func (t *Topology) updateWirelessLinks(n *Node) {
	for _, o := range slices.Clone(t.nodes) {
		if o == n || o.topo != t || n.topo != t {
			continue
		}

		t.reconcileArc(n, o)
		t.reconcileArc(o, n)
	}
}

func (t *Topology) reconcileArc(from, to *Node) {
	arc := from.outIndex[to]
	if arc != nil && arc.Mode != Wireless {
		return
	}

	heard := t.resolver.IsHeardBy(from, to)

	switch {
	case heard && arc == nil:
		t.AddLink(NewDirectedLink(from, to).WithMode(Wireless))
	case !heard && arc != nil:
		t.RemoveLink(arc)
	}
}

func (t *Topology) updateSensedNodes(n *Node) {
	for _, o := range slices.Clone(t.nodes) {
		if o == n || o.topo != t || n.topo != t {
			continue
		}

		t.reconcileSensing(n, o)
		t.reconcileSensing(o, n)
	}
}

func (t *Topology) reconcileSensing(n, o *Node) {
	inRange := n.Distance(o) < n.sensingRange
	sensed := n.senses(o)

	switch {
	case inRange && !sensed:
		n.sensed = append(n.sensed, o)
		t.callSensingIn(n, o)
	case !inRange && sensed:
		n.sensed = slices.DeleteFunc(n.sensed, func(s *Node) bool { return s == o })
		t.callSensingOut(n, o)
	}
}

func (t *Topology) nodeMoved(n *Node) {
	t.touch(n)
	t.notifyMovement(n)
}

func (t *Topology) removeDyingNodes() {
	for _, n := range slices.Clone(t.nodes) {
		if n.dying {
			t.RemoveNode(n)
		}
	}
}
