package sim

import "fmt"

// A Message travels from a sender to a receiver. It is delivered to the
// receiver's mailbox during its delivery round.
type Message struct {
	ID       uint64
	Sender   *Node
	Receiver *Node
	Content  any
	Flag     string

	SendRound     int
	DeliveryRound int
}

func (m *Message) String() string {
	return fmt.Sprintf("msg %d (%d -> %d, sent %d, due %d)",
		m.ID, m.Sender.ID(), m.Receiver.ID(), m.SendRound, m.DeliveryRound)
}

// A DelayPolicy decides how many rounds a message spends in transit.
type DelayPolicy interface {
	Delay(m *Message) int
}

// FixedDelay delays every message by the same number of rounds.
type FixedDelay int

// Delay implements DelayPolicy.
func (d FixedDelay) Delay(_ *Message) int {
	return int(d)
}

// DelayPolicyFunc adapts a function into a DelayPolicy.
type DelayPolicyFunc func(m *Message) int

// Delay calls f.
func (f DelayPolicyFunc) Delay(m *Message) int {
	return f(m)
}

// A DeliveryPolicy decides, when a message is due, whether it can still
// reach its receiver.
type DeliveryPolicy interface {
	CanDeliver(t *Topology, m *Message) bool
}

// DirectLinkPolicy requires the arc from the sender to the receiver to exist
// at delivery time.
type DirectLinkPolicy struct{}

// CanDeliver implements DeliveryPolicy.
func (DirectLinkPolicy) CanDeliver(_ *Topology, m *Message) bool {
	return m.Sender.DirectedLinkTo(m.Receiver) != nil
}

// PathPolicy requires a directed path from the sender to the receiver to
// exist at delivery time.
type PathPolicy struct{}

// CanDeliver implements DeliveryPolicy.
func (PathPolicy) CanDeliver(t *Topology, m *Message) bool {
	return t.PathExists(m.Sender, m.Receiver)
}
