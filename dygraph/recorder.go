package dygraph

import (
	"fmt"
	"io"

	"github.com/sarchlab/dynet/sim"
)

// A TraceRecorder writes node insertions, removals and moves of a topology
// in the trace format read by TracePlayer.
type TraceRecorder struct {
	topo *sim.Topology
	w    io.Writer
	err  error
	subs []*sim.Subscription
}

// NewTraceRecorder starts recording. The nodes already in the topology are
// written as insertions at the current round.
func NewTraceRecorder(topo *sim.Topology, w io.Writer) *TraceRecorder {
	r := &TraceRecorder{topo: topo, w: w}

	for _, n := range topo.Nodes() {
		r.OnNodeAdded(n)
	}

	r.subs = append(r.subs,
		topo.AddTopologyListener(r),
		topo.AddMovementListener(r),
	)

	return r
}

// Close stops recording and returns the first write error, if any.
func (r *TraceRecorder) Close() error {
	for _, s := range r.subs {
		s.Cancel()
	}

	return r.err
}

// OnNodeAdded implements sim.TopologyListener.
func (r *TraceRecorder) OnNodeAdded(n *sim.Node) {
	r.write(TraceOp{
		Round: r.topo.Time(), Kind: OpAddNode, ID: n.ID(), Location: n.Location(),
	})
}

// OnNodeRemoved implements sim.TopologyListener.
func (r *TraceRecorder) OnNodeRemoved(n *sim.Node) {
	r.write(TraceOp{Round: r.topo.Time(), Kind: OpDeleteNode, ID: n.ID()})
}

// OnMovement implements sim.MovementListener.
func (r *TraceRecorder) OnMovement(n *sim.Node) {
	r.write(TraceOp{
		Round: r.topo.Time(), Kind: OpChangeNode, ID: n.ID(), Location: n.Location(),
	})
}

func (r *TraceRecorder) write(op TraceOp) {
	if r.err != nil {
		return
	}

	_, r.err = fmt.Fprintln(r.w, op.String())
}
