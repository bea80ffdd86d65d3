package sim

import "sync"

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Round  int
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered
	NumHooks() int
}

// Hook positions triggered by a Topology. Item carries the affected *Node,
// *Link or *Message. For HookPosRoundStart and HookPosRoundEnd, Item is nil.
var (
	HookPosNodeAdded     = &HookPos{Name: "NodeAdded"}
	HookPosNodeRemoved   = &HookPos{Name: "NodeRemoved"}
	HookPosNodeMoved     = &HookPos{Name: "NodeMoved"}
	HookPosNodeFailure   = &HookPos{Name: "NodeFailure"}
	HookPosLinkAdded     = &HookPos{Name: "LinkAdded"}
	HookPosLinkRemoved   = &HookPos{Name: "LinkRemoved"}
	HookPosMsgSent       = &HookPos{Name: "MsgSent"}
	HookPosMsgDelivered  = &HookPos{Name: "MsgDelivered"}
	HookPosMsgDropped    = &HookPos{Name: "MsgDropped"}
	HookPosRoundStart    = &HookPos{Name: "RoundStart"}
	HookPosRoundEnd      = &HookPos{Name: "RoundEnd"}
	HookPosTopologyReset = &HookPos{Name: "TopologyReset"}
)

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	lock  sync.RWMutex
	hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hooks = make([]Hook, 0)
	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
