// Package trace provides the Hookable/Hook instrumentation pattern used to
// observe pipeline stages and I/O events without coupling the core
// components to any particular sink (file, sqlite, stdout). Components that
// want to be observed embed a Base and call InvokeHook at the points they want
// to expose; observers register a Hook for the HookPos they care about.
package trace

// HookPos enumerates the points in the simulation a Hook may attach to.
type HookPos int

// Positions components in this repository invoke hooks at.
const (
	AnyPos HookPos = iota
	StageInvoked
	PipelineCycle
	CacheHit
	CacheMiss
	CacheEvict
	PageFault
	SwapOut
	SwapIn
	IORequestEnqueued
	IORequestServiced
	PCBStateChange
)

// Hook is a short piece of code invoked when a Hookable fires an event at
// a matching HookPos. Item carries whatever the firing component considers
// the subject of the event (an *pcb.PCB, an address, a mnemonic, ...).
type Hook interface {
	Pos() HookPos
	Func(item interface{}, domain Hookable, info interface{})
}

// Hookable is anything that accepts hooks and can invoke them.
type Hookable interface {
	Name() string
	AcceptHook(h Hook)
	InvokeHook(item interface{}, pos HookPos, info interface{})
}

// Base gives a struct AcceptHook/InvokeHook for free; embed it and set a
// name via NewBase.
type Base struct {
	name  string
	hooks []Hook
}

// NewBase creates a Base with the given diagnostic name.
func NewBase(name string) *Base {
	return &Base{name: name}
}

// Name returns the owning component's diagnostic name.
func (b *Base) Name() string {
	return b.name
}

// AcceptHook registers a hook to be invoked by future InvokeHook calls.
func (b *Base) AcceptHook(h Hook) {
	b.hooks = append(b.hooks, h)
}

// InvokeHook runs every registered hook whose Pos matches pos (or AnyPos).
func (b *Base) InvokeHook(item interface{}, pos HookPos, info interface{}) {
	for _, h := range b.hooks {
		if h.Pos() == AnyPos || h.Pos() == pos {
			h.Func(item, b, info)
		}
	}
}

// FuncHook adapts a plain function into a Hook, the common case where a
// caller wants to observe one position with a closure.
type FuncHook struct {
	pos HookPos
	fn  func(item interface{}, domain Hookable, info interface{})
}

// NewFuncHook builds a Hook that calls fn whenever an event fires at pos.
func NewFuncHook(
	pos HookPos,
	fn func(item interface{}, domain Hookable, info interface{}),
) *FuncHook {
	return &FuncHook{pos: pos, fn: fn}
}

// Pos returns the position this hook was registered for.
func (f *FuncHook) Pos() HookPos {
	return f.pos
}

// Func invokes the wrapped closure.
func (f *FuncHook) Func(item interface{}, domain Hookable, info interface{}) {
	f.fn(item, domain, info)
}
