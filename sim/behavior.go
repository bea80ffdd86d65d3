package sim

// A node's Behavior can implement any of the following interfaces. The
// topology checks for each of them before calling into the behavior, so a
// behavior only implements the callbacks it cares about.

// Starter is called when the topology starts or restarts, and when the node
// joins an already started topology.
type Starter interface {
	OnStart(n *Node)
}

// Stopper is called right before the node is removed.
type Stopper interface {
	OnStop(n *Node)
}

// PreClocker runs at the beginning of every round, before message delivery.
type PreClocker interface {
	OnPreClock(n *Node)
}

// Clocker runs once per round, after message delivery.
type Clocker interface {
	OnClock(n *Node)
}

// PostClocker runs at the end of every round, after the clock listeners.
type PostClocker interface {
	OnPostClock(n *Node)
}

// MessageHandler receives every message delivered to the node.
type MessageHandler interface {
	OnMessage(n *Node, m *Message)
}

// LinkObserver is told about undirected links of the node.
type LinkObserver interface {
	OnLinkAdded(n *Node, l *Link)
	OnLinkRemoved(n *Node, l *Link)
}

// DirectedLinkObserver is told about arcs in which the node is an endpoint.
type DirectedLinkObserver interface {
	OnDirectedLinkAdded(n *Node, l *Link)
	OnDirectedLinkRemoved(n *Node, l *Link)
}

// SensingObserver is told when other nodes enter or leave the sensing range.
type SensingObserver interface {
	OnSensingIn(n *Node, other *Node)
	OnSensingOut(n *Node, other *Node)
}

// Mover is told after the node moved.
type Mover interface {
	OnMove(n *Node)
}

// Selectable is told when the node gets selected.
type Selectable interface {
	OnSelection(n *Node)
}
