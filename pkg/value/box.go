package value

import "github.com/ekroon/magnus/pkg/host"

// BoxValue is a heap allocation that is itself, for its entire lifetime, a
// GC root. Unlike a pin guard it is not scope-bound: it stays registered
// until Release is called explicitly.
//
// The usual way to obtain one is the move-out path of a pinned wrapper
// (pin.IntoRooted), which transfers a value from stack-pinned storage into
// durable rooted storage.
type BoxValue[T any] struct {
	registry host.RootRegistry
	value    T
	addr     *host.Handle
	released bool
}

// NewBox roots v in a fresh heap allocation. The allocation's handle word is
// registered with the registry before NewBox returns, so there is no window
// in which the value is unprotected after construction.
func NewBox[T any, PT interface {
	*T
	Ref
}](registry host.RootRegistry, v T) *BoxValue[T] {
	b := &BoxValue[T]{registry: registry, value: v}
	b.addr = PT(&b.value).RawRef()
	registry.RegisterAddress(b.addr)
	return b
}

// Value returns the boxed value for field-level access.
func (b *BoxValue[T]) Value() *T { return &b.value }

// Release deregisters the box. The referenced object is reclaimed or moved
// at the collector's discretion afterwards; the box must not be used again.
// Repeated calls are no-ops.
func (b *BoxValue[T]) Release() {
	if b.released {
		return
	}
	b.registry.UnregisterAddress(b.addr)
	b.released = true
}
