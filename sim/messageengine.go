package sim

import "slices"

// MessageStats counts messages handled by a MessageEngine.
type MessageStats struct {
	Sent      uint64 `json:"sent"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// A MessageEngine moves messages from the send queues of the nodes to the
// mailboxes of their receivers, once per round.
type MessageEngine struct {
	topo     *Topology
	delay    DelayPolicy
	delivery DeliveryPolicy
	nextID   uint64
	stats    MessageStats
}

func newMessageEngine(t *Topology) *MessageEngine {
	return &MessageEngine{
		topo:     t,
		delay:    FixedDelay(1),
		delivery: DirectLinkPolicy{},
	}
}

// SetDelayPolicy changes how delivery rounds are computed for new messages.
func (e *MessageEngine) SetDelayPolicy(p DelayPolicy) {
	e.delay = p
}

// SetDeliveryPolicy changes the check applied to due messages.
func (e *MessageEngine) SetDeliveryPolicy(p DeliveryPolicy) {
	e.delivery = p
}

// Stats returns the message counters.
func (e *MessageEngine) Stats() MessageStats {
	return e.stats
}

// Pending returns the number of messages waiting in send queues.
func (e *MessageEngine) Pending() int {
	count := 0
	for _, n := range e.topo.nodes {
		count += len(n.sendQueue)
	}

	return count
}

func (e *MessageEngine) send(from, to *Node, content any, flag string) *Message {
	e.nextID++
	m := &Message{
		ID:        e.nextID,
		Sender:    from,
		Receiver:  to,
		Content:   content,
		Flag:      flag,
		SendRound: e.topo.clock.sendRound(),
	}

	delay := e.delay.Delay(m)
	if delay < 1 {
		delay = 1
	}
	m.DeliveryRound = m.SendRound + delay

	from.sendQueue = append(from.sendQueue, m)
	e.stats.Sent++
	e.topo.invokeHook(HookPosMsgSent, m, nil)

	return m
}

// flush delivers every due message. Messages sent while flushing are kept for
// later rounds.
func (e *MessageEngine) flush() {
	round := e.topo.Time()

	for _, n := range slices.Clone(e.topo.nodes) {
		if n.topo != e.topo {
			continue
		}

		queue := n.sendQueue
		n.sendQueue = nil

		var pending []*Message
		for _, m := range queue {
			if m.DeliveryRound > round {
				pending = append(pending, m)
				continue
			}

			e.deliver(m)
		}

		n.sendQueue = append(pending, n.sendQueue...)
	}
}

func (e *MessageEngine) deliver(m *Message) {
	if m.Receiver.topo != e.topo || !e.delivery.CanDeliver(e.topo, m) {
		e.drop(m)
		return
	}

	m.Receiver.mailbox = append(m.Receiver.mailbox, m)
	e.stats.Delivered++
	e.topo.notifyMessageDelivered(m)
}

func (e *MessageEngine) drop(m *Message) {
	e.stats.Dropped++
	e.topo.notifyMessageDropped(m)
}

// dropQueue discards the pending messages of a node that leaves.
func (e *MessageEngine) dropQueue(n *Node) {
	queue := n.sendQueue
	n.sendQueue = nil

	for _, m := range queue {
		e.drop(m)
	}
}

func (e *MessageEngine) clear() {
	for _, n := range e.topo.nodes {
		n.sendQueue = nil
		n.mailbox = nil
	}
}
