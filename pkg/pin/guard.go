package pin

import (
	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/value"
)

// Guard owns the registration side effect for one pinned value: it registers
// the value's handle-word address on construction and deregisters it exactly
// once when Unpin runs.
//
// Callers defer Unpin immediately after pinning so deregistration happens on
// every exit path, including an unwind captured further up the frame:
//
//	g := pin.Pin(rt.Roots(), p)
//	defer g.Unpin()
type Guard[T any] struct {
	registry host.RootRegistry
	pinned   *Pinned[T]
	val      *T
	addr     *host.Handle
	released bool
}

// Pin registers the pinned wrapper's handle word as a GC root immediately
// and unconditionally. The wrapper is provably non-relocatable (heap-resident
// behind its pointer), so no caller assertion is needed.
func Pin[T any, PT interface {
	*T
	value.Ref
}](registry host.RootRegistry, p *Pinned[T]) *Guard[T] {
	addr := PT(&p.value).RawRef()
	registry.RegisterAddress(addr)
	return &Guard[T]{registry: registry, pinned: p, val: &p.value, addr: addr}
}

// PinUnchecked registers a typed value that is not held in a Pinned wrapper.
//
// Precondition the caller must guarantee: the value's storage will not move
// and will not be copied out from under the registration while the guard is
// alive. Typical use is pinning a local wrapper variable for the remainder
// of the enclosing call frame.
func PinUnchecked[T any, PT interface {
	*T
	value.Ref
}](registry host.RootRegistry, v PT) *Guard[T] {
	addr := v.RawRef()
	registry.RegisterAddress(addr)
	return &Guard[T]{registry: registry, val: (*T)(v), addr: addr}
}

// AsPinned returns the guarded wrapper for passing into further operations.
// It is nil for guards built with PinUnchecked.
func (g *Guard[T]) AsPinned() *Pinned[T] { return g.pinned }

// Value exposes read/write access to the pinned value. There is no path to
// replace the wrapper's storage through it.
func (g *Guard[T]) Value() *T { return g.val }

// Unpin deregisters the same address that was registered at construction.
// It runs at most once; repeated calls (for example the deferred Unpin after
// a move-out consumed the guard) are no-ops.
func (g *Guard[T]) Unpin() {
	if g.released {
		return
	}
	g.registry.UnregisterAddress(g.addr)
	g.released = true
}

// IntoRooted moves the guarded value out into a rooted box and consumes the
// guard. The box is registered before the guard's address is released, so
// the object is a root at every instant of the transfer. The deferred Unpin
// at scope exit then sees a consumed guard and does nothing.
//
// The source wrapper's storage is logically consumed: it must not be read or
// written afterwards.
func IntoRooted[T any, PT interface {
	*T
	value.Ref
}](g *Guard[T]) *value.BoxValue[T] {
	box := value.NewBox[T, PT](g.registry, *g.val)
	g.Unpin()
	return box
}
