package sim

// AddTopologyListener registers a listener for node insertions and removals.
func (t *Topology) AddTopologyListener(l TopologyListener) *Subscription {
	return t.topologyListeners.add(l)
}

// AddConnectivityListener registers a listener for undirected links.
func (t *Topology) AddConnectivityListener(l ConnectivityListener) *Subscription {
	return t.linkListeners.add(l)
}

// AddDirectedConnectivityListener registers a listener for arcs.
func (t *Topology) AddDirectedConnectivityListener(
	l ConnectivityListener,
) *Subscription {
	return t.arcListeners.add(l)
}

// AddMovementListener registers a listener for node moves.
func (t *Topology) AddMovementListener(l MovementListener) *Subscription {
	return t.movementListeners.add(l)
}

// AddMessageListener registers a listener for delivered messages. If the
// listener also implements MessageDropListener, it hears about drops too.
func (t *Topology) AddMessageListener(l MessageListener) *Subscription {
	return t.messageListeners.add(l)
}

// AddSelectionListener registers a listener for node selection.
func (t *Topology) AddSelectionListener(l SelectionListener) *Subscription {
	return t.selectionListeners.add(l)
}

// AddStartListener registers a listener for starts and restarts.
func (t *Topology) AddStartListener(l StartListener) *Subscription {
	return t.startListeners.add(l)
}

// AddClockListener registers a listener called every period rounds.
func (t *Topology) AddClockListener(l ClockListener, period int) *Subscription {
	return t.clock.AddListener(l, period)
}

// AddCommandListener registers a listener for executed commands.
func (t *Topology) AddCommandListener(l CommandListener) *Subscription {
	return t.commandListeners.add(l)
}

// safely runs node logic. A panic is logged and reported to the hooks, and
// does not stop the round for other nodes.
func (t *Topology) safely(n *Node, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Int("node", n.id).
				Int("round", t.Time()).
				Str("callback", callback).
				Interface("panic", r).
				Msg("node logic failed")

			t.invokeHook(HookPosNodeFailure, n, r)
		}
	}()

	fn()
}

func (t *Topology) callStart(n *Node) {
	if s, ok := n.Behavior.(Starter); ok {
		t.safely(n, "OnStart", func() { s.OnStart(n) })
	}
}

func (t *Topology) callStop(n *Node) {
	if s, ok := n.Behavior.(Stopper); ok {
		t.safely(n, "OnStop", func() { s.OnStop(n) })
	}
}

func (t *Topology) callSensingIn(n, o *Node) {
	if s, ok := n.Behavior.(SensingObserver); ok {
		t.safely(n, "OnSensingIn", func() { s.OnSensingIn(n, o) })
	}
}

func (t *Topology) callSensingOut(n, o *Node) {
	if s, ok := n.Behavior.(SensingObserver); ok {
		t.safely(n, "OnSensingOut", func() { s.OnSensingOut(n, o) })
	}
}

func (t *Topology) notifyNodeAdded(n *Node) {
	for _, l := range t.topologyListeners.snapshot() {
		l.OnNodeAdded(n)
	}

	t.invokeHook(HookPosNodeAdded, n, nil)
}

func (t *Topology) notifyNodeRemoved(n *Node) {
	for _, l := range t.topologyListeners.snapshot() {
		l.OnNodeRemoved(n)
	}

	t.invokeHook(HookPosNodeRemoved, n, nil)
}

func (t *Topology) notifyArcAdded(arc *Link) {
	for _, n := range []*Node{arc.Source, arc.Destination} {
		if o, ok := n.Behavior.(DirectedLinkObserver); ok {
			t.safely(n, "OnDirectedLinkAdded",
				func() { o.OnDirectedLinkAdded(n, arc) })
		}
	}

	for _, l := range t.arcListeners.snapshot() {
		l.OnLinkAdded(arc)
	}

	t.invokeHook(HookPosLinkAdded, arc, nil)
}

func (t *Topology) notifyArcRemoved(arc *Link) {
	for _, n := range []*Node{arc.Source, arc.Destination} {
		if o, ok := n.Behavior.(DirectedLinkObserver); ok {
			t.safely(n, "OnDirectedLinkRemoved",
				func() { o.OnDirectedLinkRemoved(n, arc) })
		}
	}

	for _, l := range t.arcListeners.snapshot() {
		l.OnLinkRemoved(arc)
	}

	t.invokeHook(HookPosLinkRemoved, arc, nil)
}

func (t *Topology) notifyLinkAdded(edge *Link) {
	for _, n := range []*Node{edge.Source, edge.Destination} {
		if o, ok := n.Behavior.(LinkObserver); ok {
			t.safely(n, "OnLinkAdded", func() { o.OnLinkAdded(n, edge) })
		}
	}

	for _, l := range t.linkListeners.snapshot() {
		l.OnLinkAdded(edge)
	}

	t.invokeHook(HookPosLinkAdded, edge, nil)
}

func (t *Topology) notifyLinkRemoved(edge *Link) {
	for _, n := range []*Node{edge.Source, edge.Destination} {
		if o, ok := n.Behavior.(LinkObserver); ok {
			t.safely(n, "OnLinkRemoved", func() { o.OnLinkRemoved(n, edge) })
		}
	}

	for _, l := range t.linkListeners.snapshot() {
		l.OnLinkRemoved(edge)
	}

	t.invokeHook(HookPosLinkRemoved, edge, nil)
}

func (t *Topology) notifyMovement(n *Node) {
	if m, ok := n.Behavior.(Mover); ok {
		t.safely(n, "OnMove", func() { m.OnMove(n) })
	}

	for _, l := range t.movementListeners.snapshot() {
		l.OnMovement(n)
	}

	t.invokeHook(HookPosNodeMoved, n, nil)
}

func (t *Topology) notifyMessageDelivered(m *Message) {
	if h, ok := m.Receiver.Behavior.(MessageHandler); ok {
		t.safely(m.Receiver, "OnMessage", func() { h.OnMessage(m.Receiver, m) })
	}

	for _, l := range t.messageListeners.snapshot() {
		l.OnMessage(m)
	}

	t.invokeHook(HookPosMsgDelivered, m, nil)
}

func (t *Topology) notifyMessageDropped(m *Message) {
	for _, l := range t.messageListeners.snapshot() {
		if d, ok := l.(MessageDropListener); ok {
			d.OnMessageDropped(m)
		}
	}

	t.invokeHook(HookPosMsgDropped, m, nil)
}

func (t *Topology) notifySelection(n *Node) {
	if s, ok := n.Behavior.(Selectable); ok {
		t.safely(n, "OnSelection", func() { s.OnSelection(n) })
	}

	for _, l := range t.selectionListeners.snapshot() {
		l.OnSelection(n)
	}
}

func (t *Topology) notifyStart() {
	for _, l := range t.startListeners.snapshot() {
		l.OnStartTopology()
	}
}

func (t *Topology) notifyCommand(command string) {
	for _, l := range t.commandListeners.snapshot() {
		l.OnCommand(command)
	}
}
