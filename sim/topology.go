package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/graph/simple"
	gtopo "gonum.org/v1/gonum/graph/topo"
)

// RefreshMode tells when geometry changes turn into link updates.
type RefreshMode int

const (
	// RefreshEventBased updates links as soon as a node changes.
	RefreshEventBased RefreshMode = iota

	// RefreshClockBased collects changed nodes and updates their links once,
	// at the beginning of the next round.
	RefreshClockBased
)

func (m RefreshMode) String() string {
	if m == RefreshClockBased {
		return "clock"
	}

	return "event"
}

// DefaultModel is the name of the model used when none is given.
const DefaultModel = "default"

// NodeFactory builds a node of a given model.
type NodeFactory func() (*Node, error)

func genericNode() (*Node, error) {
	return NewNode(), nil
}

// A Topology owns the nodes and links of a simulated network, drives rounds
// through its clock and notifies listeners about every change.
type Topology struct {
	HookableBase

	nodes     []*Node
	arcs      []*Link
	edges     []*Link
	edgeIndex map[*Node]map[*Node]*Link
	nextID    int

	models map[string]NodeFactory

	commRange    float64
	sensingRange float64
	width        float64
	height       float64
	wireless     bool

	refreshMode RefreshMode
	pending     []*Node
	pendingSet  map[*Node]bool

	resolver  LinkResolver
	scheduler Scheduler
	clock     *Clock
	messages  *MessageEngine

	selected *Node
	commands []string

	topologyListeners  listenerSet[TopologyListener]
	linkListeners      listenerSet[ConnectivityListener]
	arcListeners       listenerSet[ConnectivityListener]
	movementListeners  listenerSet[MovementListener]
	messageListeners   listenerSet[MessageListener]
	selectionListeners listenerSet[SelectionListener]
	startListeners     listenerSet[StartListener]
	commandListeners   listenerSet[CommandListener]

	logger zerolog.Logger
	rand   *rand.Rand
}

// Clock returns the clock that drives the topology.
func (t *Topology) Clock() *Clock {
	return t.clock
}

// MessageEngine returns the engine that delivers messages.
func (t *Topology) MessageEngine() *MessageEngine {
	return t.messages
}

// Logger returns the diagnostic logger.
func (t *Topology) Logger() *zerolog.Logger {
	return &t.logger
}

// Rand returns the random source of the topology.
func (t *Topology) Rand() *rand.Rand {
	return t.rand
}

// LinkResolver returns the resolver deciding wireless links.
func (t *Topology) LinkResolver() LinkResolver {
	return t.resolver
}

// SetLinkResolver replaces the resolver and refreshes every node.
func (t *Topology) SetLinkResolver(r LinkResolver) {
	t.resolver = r
	t.touchAll()
}

// Scheduler returns the round scheduler.
func (t *Topology) Scheduler() Scheduler {
	return t.scheduler
}

// SetScheduler replaces the round scheduler.
func (t *Topology) SetScheduler(s Scheduler) {
	t.scheduler = s
}

// CommunicationRange returns the default communication range.
func (t *Topology) CommunicationRange() float64 {
	return t.commRange
}

// SetCommunicationRange sets the default range and applies it to all nodes.
func (t *Topology) SetCommunicationRange(r float64) {
	t.commRange = r
	for _, n := range slices.Clone(t.nodes) {
		n.SetCommunicationRange(r)
	}
}

// SensingRange returns the default sensing range.
func (t *Topology) SensingRange() float64 {
	return t.sensingRange
}

// SetSensingRange sets the default range and applies it to all nodes.
func (t *Topology) SetSensingRange(r float64) {
	t.sensingRange = r
	for _, n := range slices.Clone(t.nodes) {
		n.SetSensingRange(r)
	}
}

// IsWirelessEnabled tells whether new nodes take part in wireless links.
func (t *Topology) IsWirelessEnabled() bool {
	return t.wireless
}

// SetWirelessStatus enables or disables wireless links for all nodes.
func (t *Topology) SetWirelessStatus(enabled bool) {
	t.wireless = enabled
	for _, n := range slices.Clone(t.nodes) {
		n.SetWirelessStatus(enabled)
	}
}

// Width returns the width of the placement area.
func (t *Topology) Width() float64 {
	return t.width
}

// Height returns the height of the placement area.
func (t *Topology) Height() float64 {
	return t.height
}

// SetDimensions changes the placement area.
func (t *Topology) SetDimensions(width, height float64) {
	t.width = width
	t.height = height
}

// RefreshMode returns the current refresh mode.
func (t *Topology) RefreshMode() RefreshMode {
	return t.refreshMode
}

// SetRefreshMode changes the refresh mode. Pending updates are applied when
// switching back to event-based refresh.
func (t *Topology) SetRefreshMode(m RefreshMode) {
	t.refreshMode = m
	if m == RefreshEventBased {
		t.processPendingUpdates()
	}
}

// SetNodeModel registers a node factory under a model name.
func (t *Topology) SetNodeModel(name string, f NodeFactory) {
	t.models[name] = f
}

// SetDefaultNodeModel replaces the factory used for default nodes.
func (t *Topology) SetDefaultNodeModel(f NodeFactory) {
	t.models[DefaultModel] = f
}

// ModelNames returns the registered model names, sorted.
func (t *Topology) ModelNames() []string {
	names := make([]string, 0, len(t.models))
	for name := range t.models {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// NewNodeOfModel builds a node from a registered model. If the model is
// unknown or its factory fails, a generic node is returned and the failure
// is logged.
func (t *Topology) NewNodeOfModel(name string) *Node {
	f, ok := t.models[name]
	if !ok {
		t.logger.Warn().
			Err(ErrUnknownModel).
			Str("model", name).
			Msg("falling back to a generic node")

		n := NewNode()
		n.model = DefaultModel

		return n
	}

	n, err := f()
	if err == nil && n == nil {
		err = errors.New("factory returned no node")
	}

	if err != nil {
		t.logger.Warn().
			Err(fmt.Errorf("%w: %w", ErrModelFactory, err)).
			Str("model", name).
			Msg("falling back to a generic node")

		n = NewNode()
		name = DefaultModel
	}

	n.model = name

	return n
}

// AddNode inserts a node. A nil node is replaced by a node of the default
// model. The node gets an id if it has none, and default ranges for the
// ranges that were not set.
func (t *Topology) AddNode(n *Node) *Node {
	if n == nil {
		n = t.NewNodeOfModel(DefaultModel)
	}

	if n.topo == t {
		return n
	}

	if n.topo != nil {
		panic(fmt.Sprintf("%s already belongs to another topology", n))
	}

	t.Pause()
	defer t.Resume()

	t.prepareNode(n)
	t.nodes = append(t.nodes, n)
	n.topo = t

	t.notifyNodeAdded(n)

	if t.IsStarted() {
		t.callStart(n)
	}

	t.touch(n)

	return n
}

func (t *Topology) prepareNode(n *Node) {
	if n.outIndex == nil {
		n.outIndex = make(map[*Node]*Link)
	}

	if n.id != NoID && t.FindNodeByID(n.id) != nil {
		t.logger.Warn().
			Int("id", n.id).
			Int("assigned", t.nextID).
			Msg("node id already taken, assigning a new one")

		n.id = NoID
	}

	if n.id == NoID {
		n.id = t.nextID
		t.nextID++
	} else if n.id >= t.nextID {
		t.nextID = n.id + 1
	}

	if n.commRange == unsetRange {
		n.commRange = t.commRange
	}

	if n.sensingRange == unsetRange {
		n.sensingRange = t.sensingRange
	}

	if n.model == "" {
		n.model = DefaultModel
	}

	if !t.wireless {
		n.wireless = false
	}

	n.dying = false
}

// AddNodeAt places the node at p and inserts it. A node already in the
// topology is moved to p.
func (t *Topology) AddNodeAt(p Point, n *Node) *Node {
	if n == nil {
		n = t.NewNodeOfModel(DefaultModel)
	}

	if n.topo == t {
		n.SetLocation(p)
		return n
	}

	if n.topo == nil {
		n.location = p
	}

	return t.AddNode(n)
}

// AddNodeRandom places the node at a random location within the dimensions
// of the topology and inserts it.
func (t *Topology) AddNodeRandom(n *Node) *Node {
	p := Point{
		X: t.rand.Float64() * t.width,
		Y: t.rand.Float64() * t.height,
	}

	return t.AddNodeAt(p, n)
}

// RemoveNode detaches the node and every link touching it. Removing a node
// that is not in the topology does nothing.
func (t *Topology) RemoveNode(n *Node) {
	if n == nil || n.topo != t {
		t.logger.Warn().
			Stringer("node", n).
			Msg("removing a node that is not in the topology")

		return
	}

	t.Pause()
	defer t.Resume()

	t.callStop(n)

	for _, l := range n.Links() {
		t.RemoveLink(l)
	}

	for _, l := range n.OutLinks() {
		t.RemoveLink(l)
	}

	for _, o := range n.InNeighbors() {
		t.RemoveLink(o.outIndex[n])
	}

	t.messages.dropQueue(n)
	t.notifyNodeRemoved(n)

	t.nodes = slices.DeleteFunc(t.nodes, func(o *Node) bool { return o == n })

	for _, o := range slices.Clone(t.nodes) {
		if o.senses(n) {
			o.sensed = slices.DeleteFunc(o.sensed,
				func(s *Node) bool { return s == n })
			t.callSensingOut(o, n)
		}
	}

	n.sensed = nil
	delete(t.pendingSet, n)

	if t.selected == n {
		t.selected = nil
	}

	n.topo = nil
}

// Nodes returns a copy of the node list, in insertion order.
func (t *Topology) Nodes() []*Node {
	return slices.Clone(t.nodes)
}

// NodeCount returns the number of nodes.
func (t *Topology) NodeCount() int {
	return len(t.nodes)
}

// FindNodeByID returns the node with the given id, or nil.
func (t *Topology) FindNodeByID(id int) *Node {
	for _, n := range t.nodes {
		if n.id == id {
			return n
		}
	}

	return nil
}

// ShuffleNodeIDs randomly permutes the ids of the nodes.
func (t *Topology) ShuffleNodeIDs() {
	ids := make([]int, len(t.nodes))
	for i, n := range t.nodes {
		ids[i] = n.id
	}

	t.rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	for i, n := range t.nodes {
		n.id = ids[i]
	}
}

// Clear removes every node and resets the id counter.
func (t *Topology) Clear() {
	t.Pause()
	defer t.Resume()

	for _, n := range slices.Clone(t.nodes) {
		t.RemoveNode(n)
	}

	t.nextID = 0
	t.pending = nil
	t.invokeHook(HookPosTopologyReset, nil, nil)
}

// SelectNode marks the node as selected and notifies it and the selection
// listeners.
func (t *Topology) SelectNode(n *Node) {
	t.selected = n
	t.notifySelection(n)
}

// SelectedNode returns the last selected node, or nil.
func (t *Topology) SelectedNode() *Node {
	return t.selected
}

// Graph returns the arcs of the topology as a gonum directed graph, with
// node ids as graph ids.
func (t *Topology) Graph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()

	for _, n := range t.nodes {
		if g.Node(int64(n.id)) == nil {
			g.AddNode(simple.Node(n.id))
		}
	}

	for _, l := range t.arcs {
		if l.Source.id == l.Destination.id {
			continue
		}

		g.SetEdge(g.NewEdge(
			g.Node(int64(l.Source.id)),
			g.Node(int64(l.Destination.id)),
		))
	}

	return g
}

// PathExists tells whether a directed path connects from to to.
func (t *Topology) PathExists(from, to *Node) bool {
	if from.topo != t || to.topo != t {
		return false
	}

	if from == to {
		return true
	}

	g := t.Graph()

	return gtopo.PathExistsIn(g, g.Node(int64(from.id)), g.Node(int64(to.id)))
}

func (t *Topology) invokeHook(pos *HookPos, item, detail interface{}) {
	if t.NumHooks() == 0 {
		return
	}

	t.InvokeHook(HookCtx{
		Domain: t,
		Round:  t.Time(),
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
