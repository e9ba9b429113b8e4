// Package pin implements stack pinning for handle-bearing values: an
// immovable wrapper whose storage address never changes while referenced, a
// scope-bound guard that registers that address as a GC root, and the
// conversion and move-out operations around them.
//
// Go has no language-level pin primitive, so immovability is structural: a
// Pinned wrapper is heap-allocated and only ever referenced through its
// pointer, and the API exposes field-level access only, so no operation can
// relocate the wrapper's storage. The guard's constructor is the sole entry
// point that establishes the registered invariant.
package pin

import (
	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/value"
)

// Pinned owns exactly one handle-bearing value at a fixed storage location.
//
// It carries no registration state itself; whether the contained handle word
// is a GC root is a property of the Guard referencing it, not of the
// wrapper.
type Pinned[T any] struct {
	value T
}

// New takes ownership of v and places it in immovable storage.
func New[T any](v T) *Pinned[T] {
	return &Pinned[T]{value: v}
}

// Value returns the contained value for field-level access. Mutating through
// the returned pointer updates fields in place — including the handle word,
// which is exactly what the collector does when the object moves — but there
// is no path that relocates the wrapper itself.
func (p *Pinned[T]) Value() *T { return &p.value }

// IntoRootedUnchecked reads the contained value out by raw copy and hands it
// to rooted-box construction.
//
// Preconditions the caller must guarantee: no other code will subsequently
// read or write through p, and no outstanding Guard over p will deregister
// its address believing it still owns it. The wrapper's root status is
// undefined after this call and must not be relied upon. Violations are not
// detected at runtime. IntoRooted is the checked path that also consumes the
// guard.
func IntoRootedUnchecked[T any, PT interface {
	*T
	value.Ref
}](registry host.RootRegistry, p *Pinned[T]) *value.BoxValue[T] {
	return value.NewBox[T, PT](registry, p.value)
}
