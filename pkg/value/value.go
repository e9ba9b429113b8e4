// Package value provides typed wrappers over raw handles and the conversion
// facilities between handles and native Go values.
//
// A typed wrapper is a small struct embedding Base, whose only state is the
// raw handle word. The word is what the collector rewrites when the object
// moves, so anything that needs GC protection registers the address returned
// by RawRef, never a copy of the handle.
package value

import (
	"fmt"

	"github.com/ekroon/magnus/pkg/host"
)

// Base is embedded by every typed handle wrapper. It stores the raw handle
// word the wrapper is a view over.
type Base struct {
	raw host.Handle
}

// Raw returns the current raw handle.
func (b Base) Raw() host.Handle { return b.raw }

// RawRef returns the address of the handle word. Registering this address
// with the root registry lets the collector update the word in place when
// the referenced object moves.
func (b *Base) RawRef() *host.Handle { return &b.raw }

// Repr is any typed wrapper over a raw handle.
type Repr interface {
	Raw() host.Handle
}

// Ref is a pointer to a typed wrapper, exposing the storage word of its
// handle. All wrappers embedding Base satisfy it through their pointer type.
type Ref interface {
	Repr
	RawRef() *host.Handle
}

// FromHandle is implemented by wrapper pointer types that can populate
// themselves from a raw handle after validating its dynamic type against the
// wrapper's expected runtime class.
type FromHandle interface {
	FromHandle(rt host.Runtime, h host.Handle) error
}

// Into converts a native result into a raw handle. It is consumed by the
// Returning state of the dispatch path. Conversion may allocate on the
// runtime heap and therefore trigger a collection; the returned handle is
// always current.
type Into interface {
	IntoHandle(rt host.Runtime) (host.Handle, error)
}

// Any is a typed wrapper accepting any live object.
type Any struct {
	Base
}

func (v *Any) FromHandle(rt host.Runtime, h host.Handle) error {
	if _, err := rt.KindOf(h); err != nil {
		return fmt.Errorf("converting handle: %w", err)
	}
	v.raw = h
	return nil
}

func (v Any) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return v.raw, nil
}

// Str is a typed wrapper over a runtime String object.
type Str struct {
	Base
}

func (v *Str) FromHandle(rt host.Runtime, h host.Handle) error {
	kind, err := rt.KindOf(h)
	if err != nil {
		return fmt.Errorf("converting handle: %w", err)
	}
	if kind != host.StringClass {
		return &TypeMismatchError{Want: host.StringClass, Got: kind}
	}
	v.raw = h
	return nil
}

func (v Str) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return v.raw, nil
}

// Value reads the string payload behind the wrapper's current handle.
func (v Str) Value(rt host.Runtime) (string, error) {
	return rt.StringValue(v.raw)
}

// Int is a typed wrapper over a runtime Integer object.
type Int struct {
	Base
}

func (v *Int) FromHandle(rt host.Runtime, h host.Handle) error {
	kind, err := rt.KindOf(h)
	if err != nil {
		return fmt.Errorf("converting handle: %w", err)
	}
	if kind != host.IntegerClass {
		return &TypeMismatchError{Want: host.IntegerClass, Got: kind}
	}
	v.raw = h
	return nil
}

func (v Int) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return v.raw, nil
}

// Value reads the integer payload behind the wrapper's current handle.
func (v Int) Value(rt host.Runtime) (int64, error) {
	return rt.IntegerValue(v.raw)
}

// Text converts a native Go string result into a runtime String.
type Text string

func (t Text) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return rt.NewString(string(t)), nil
}

// Integer converts a native Go integer result into a runtime Integer.
type Integer int64

func (i Integer) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return rt.NewInteger(int64(i)), nil
}

// Raw passes an already-current handle through as a result unchanged. The
// handle must not have survived an unprotected collection.
type Raw host.Handle

func (r Raw) IntoHandle(rt host.Runtime) (host.Handle, error) {
	return host.Handle(r), nil
}
