package tracing

import (
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/dynet/sim"
)

// CollectTrace lets the tracer collect the tasks of a topology.
func CollectTrace(topo *sim.Topology, tracer Tracer) {
	topo.AcceptHook(&traceHook{
		t:   tracer,
		ids: make(map[any]string),
	})
}

// A traceHook translates topology events into task starts and ends.
type traceHook struct {
	t   Tracer
	mu  sync.Mutex
	ids map[any]string
}

// Func implements sim.Hook.
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosNodeAdded:
		n := ctx.Item.(*sim.Node)
		h.start(n, Task{
			Kind:       KindNode,
			What:       n.Model(),
			Location:   fmt.Sprintf("node %d", n.ID()),
			StartRound: ctx.Round,
		})
	case sim.HookPosNodeRemoved:
		h.end(ctx.Item, ctx.Round, "removed")
	case sim.HookPosLinkAdded:
		l := ctx.Item.(*sim.Link)
		h.start(l, Task{
			Kind:       KindLink,
			What:       l.Type.String() + " " + l.Mode.String(),
			Location:   l.String(),
			StartRound: ctx.Round,
		})
	case sim.HookPosLinkRemoved:
		h.end(ctx.Item, ctx.Round, "removed")
	case sim.HookPosMsgSent:
		m := ctx.Item.(*sim.Message)
		h.start(m, Task{
			Kind:       KindMessage,
			What:       messageWhat(m),
			Location:   fmt.Sprintf("%d --> %d", m.Sender.ID(), m.Receiver.ID()),
			StartRound: m.SendRound,
			Detail:     m,
		})
	case sim.HookPosMsgDelivered:
		h.end(ctx.Item, ctx.Round, "delivered")
	case sim.HookPosMsgDropped:
		h.end(ctx.Item, ctx.Round, "dropped")
	}
}

func messageWhat(m *sim.Message) string {
	if m.Flag != "" {
		return m.Flag
	}

	return fmt.Sprintf("%T", m.Content)
}

func (h *traceHook) start(item any, task Task) {
	task.ID = xid.New().String()

	h.mu.Lock()
	h.ids[item] = task.ID
	h.mu.Unlock()

	h.t.StartTask(task)
}

func (h *traceHook) end(item any, round int, what string) {
	h.mu.Lock()
	id, ok := h.ids[item]
	delete(h.ids, item)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.t.EndTask(Task{ID: id, What: what, EndRound: round})
}
