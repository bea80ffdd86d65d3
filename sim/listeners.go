package sim

import "sync"

// TopologyListener is notified when nodes enter or leave a topology.
type TopologyListener interface {
	OnNodeAdded(n *Node)
	OnNodeRemoved(n *Node)
}

// ConnectivityListener is notified when links appear or disappear. The same
// interface serves both the directed and the undirected registries.
type ConnectivityListener interface {
	OnLinkAdded(l *Link)
	OnLinkRemoved(l *Link)
}

// MovementListener is notified after a node changes location.
type MovementListener interface {
	OnMovement(n *Node)
}

// MessageListener is notified after a message reaches a mailbox.
type MessageListener interface {
	OnMessage(m *Message)
}

// MessageDropListener can be implemented by a MessageListener that also wants
// to hear about messages that could not be delivered.
type MessageDropListener interface {
	OnMessageDropped(m *Message)
}

// SelectionListener is notified when a node gets selected.
type SelectionListener interface {
	OnSelection(n *Node)
}

// StartListener is notified when the topology (re)starts.
type StartListener interface {
	OnStartTopology()
}

// ClockListener is invoked on rounds that are a multiple of its period.
type ClockListener interface {
	OnClock()
}

// CommandListener is notified of every executed command.
type CommandListener interface {
	OnCommand(command string)
}

// MovementListenerFunc adapts a function into a MovementListener.
type MovementListenerFunc func(n *Node)

// OnMovement calls f.
func (f MovementListenerFunc) OnMovement(n *Node) { f(n) }

// MessageListenerFunc adapts a function into a MessageListener.
type MessageListenerFunc func(m *Message)

// OnMessage calls f.
func (f MessageListenerFunc) OnMessage(m *Message) { f(m) }

// SelectionListenerFunc adapts a function into a SelectionListener.
type SelectionListenerFunc func(n *Node)

// OnSelection calls f.
func (f SelectionListenerFunc) OnSelection(n *Node) { f(n) }

// StartListenerFunc adapts a function into a StartListener.
type StartListenerFunc func()

// OnStartTopology calls f.
func (f StartListenerFunc) OnStartTopology() { f() }

// ClockListenerFunc adapts a function into a ClockListener.
type ClockListenerFunc func()

// OnClock calls f.
func (f ClockListenerFunc) OnClock() { f() }

// CommandListenerFunc adapts a function into a CommandListener.
type CommandListenerFunc func(command string)

// OnCommand calls f.
func (f CommandListenerFunc) OnCommand(command string) { f(command) }

// A Subscription is the handle returned when registering a listener.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel unregisters the listener. Calling it more than once is harmless.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type listenerEntry[T any] struct {
	id       uint64
	listener T
}

// listenerSet keeps the registration order. Notifications iterate over a
// snapshot, so listeners can register and cancel others while being called.
type listenerSet[T any] struct {
	lock    sync.Mutex
	nextID  uint64
	entries []listenerEntry[T]
}

func (s *listenerSet[T]) add(l T) *Subscription {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, listenerEntry[T]{id: id, listener: l})

	return &Subscription{cancel: func() { s.remove(id) }}
}

func (s *listenerSet[T]) remove(id uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i, e := range s.entries {
		if e.id == id {
			entries := make([]listenerEntry[T], 0, len(s.entries)-1)
			entries = append(entries, s.entries[:i]...)
			s.entries = append(entries, s.entries[i+1:]...)

			return
		}
	}
}

func (s *listenerSet[T]) snapshot() []T {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.listener
	}

	return out
}

func (s *listenerSet[T]) len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.entries)
}
