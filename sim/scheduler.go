package sim

import "slices"

// A Scheduler orders the work done within a round, once the pending link
// updates have been applied.
type Scheduler interface {
	OnClock(t *Topology, expired []ClockListener)
}

// DefaultScheduler runs the pre-clock hooks of the nodes, delivers due
// messages, runs the clock hooks of the nodes, calls the expired clock
// listeners and finally runs the post-clock hooks of the nodes.
type DefaultScheduler struct{}

// OnClock implements Scheduler.
func (DefaultScheduler) OnClock(t *Topology, expired []ClockListener) {
	nodes := slices.Clone(t.nodes)

	for _, n := range nodes {
		if c, ok := n.Behavior.(PreClocker); ok && n.topo == t {
			t.safely(n, "OnPreClock", func() { c.OnPreClock(n) })
		}
	}

	t.messages.flush()

	for _, n := range nodes {
		if c, ok := n.Behavior.(Clocker); ok && n.topo == t {
			t.safely(n, "OnClock", func() { c.OnClock(n) })
		}
	}

	for _, l := range expired {
		l.OnClock()
	}

	for _, n := range nodes {
		if c, ok := n.Behavior.(PostClocker); ok && n.topo == t {
			t.safely(n, "OnPostClock", func() { c.OnPostClock(n) })
		}
	}
}
