package sim

import (
	"fmt"

	. "github.com/onsi/gomega"
)

type eventRecorder struct {
	events []string
}

func (r *eventRecorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// recordingBehavior implements every node callback and writes them down.
type recordingBehavior struct {
	rec *eventRecorder
}

func (b recordingBehavior) OnStart(n *Node) { b.rec.add("%d:start", n.ID()) }
func (b recordingBehavior) OnStop(n *Node)  { b.rec.add("%d:stop", n.ID()) }

func (b recordingBehavior) OnPreClock(n *Node) {
	b.rec.add("%d:preclock@%d", n.ID(), n.Time())
}

func (b recordingBehavior) OnClock(n *Node) {
	b.rec.add("%d:clock@%d", n.ID(), n.Time())
}

func (b recordingBehavior) OnPostClock(n *Node) {
	b.rec.add("%d:postclock@%d", n.ID(), n.Time())
}

func (b recordingBehavior) OnMessage(n *Node, m *Message) {
	b.rec.add("%d:message %v", n.ID(), m.Content)
}

func (b recordingBehavior) OnLinkAdded(n *Node, l *Link) {
	b.rec.add("%d:link-added %s", n.ID(), l)
}

func (b recordingBehavior) OnLinkRemoved(n *Node, l *Link) {
	b.rec.add("%d:link-removed %s", n.ID(), l)
}

func (b recordingBehavior) OnDirectedLinkAdded(n *Node, l *Link) {
	b.rec.add("%d:arc-added %s", n.ID(), l)
}

func (b recordingBehavior) OnDirectedLinkRemoved(n *Node, l *Link) {
	b.rec.add("%d:arc-removed %s", n.ID(), l)
}

func (b recordingBehavior) OnSensingIn(n *Node, o *Node) {
	b.rec.add("%d:sensing-in %d", n.ID(), o.ID())
}

func (b recordingBehavior) OnSensingOut(n *Node, o *Node) {
	b.rec.add("%d:sensing-out %d", n.ID(), o.ID())
}

func (b recordingBehavior) OnMove(n *Node)      { b.rec.add("%d:move", n.ID()) }
func (b recordingBehavior) OnSelection(n *Node) { b.rec.add("%d:selected", n.ID()) }

type recordingConnectivityListener struct {
	rec  *eventRecorder
	name string
}

func (l recordingConnectivityListener) OnLinkAdded(link *Link) {
	l.rec.add("%s:added %s", l.name, link)
}

func (l recordingConnectivityListener) OnLinkRemoved(link *Link) {
	l.rec.add("%s:removed %s", l.name, link)
}

type panickingBehavior struct{}

func (panickingBehavior) OnClock(n *Node) {
	panic(fmt.Sprintf("node %d exploded", n.ID()))
}

func expectDuality(t *Topology) {
	for _, e := range t.Links() {
		Expect(e.Source.DirectedLinkTo(e.Destination)).NotTo(BeNil())
		Expect(e.Destination.DirectedLinkTo(e.Source)).NotTo(BeNil())
	}

	arcCount := 0
	for _, n := range t.Nodes() {
		arcCount += len(n.OutLinks())
	}
	Expect(t.DirectedLinks()).To(HaveLen(arcCount))

	for _, a := range t.DirectedLinks() {
		reverse := a.Destination.DirectedLinkTo(a.Source)
		edge := t.Link(a.Source, a.Destination)
		Expect(reverse != nil).To(Equal(edge != nil),
			"arc %s and its edge disagree", a)
	}
}

func nodeIDs(nodes []*Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}

	return ids
}
