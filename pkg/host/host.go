// Package host declares the interfaces the pinning core needs from the
// managed runtime that owns the object heap.
//
// The runtime is an external collaborator: it allocates objects, may move or
// reclaim any object its collector does not know about, and calls native Go
// functions registered in its method table. Everything the core needs from it
// is expressed here as an injected capability so tests can substitute fakes
// (a recording root registry, a reference heap with a deterministic
// collector).
package host

import "fmt"

// Handle is an opaque reference to an object owned by the runtime's heap.
//
// Handles are plain words: copyable, comparable, never dereferenced by native
// code. A copy held in native memory is NOT protected from the collector —
// after a collection pass it may reference a moved or reclaimed object.
// Protection is obtained by registering the address of the word that stores
// the handle (see RootRegistry), so the collector can update it in place.
type Handle uint64

// NilHandle is the runtime's nil reference.
const NilHandle Handle = 0

// RootRegistry marks and unmarks native memory locations as GC roots.
//
// The registered address must store a Handle for as long as it is registered;
// the collector treats the referenced object as reachable and rewrites the
// word when the object moves. Register/Unregister must be called exactly once
// per matched pair. Calling UnregisterAddress on an address that was never
// registered, or registering the same address twice, is undefined. Both
// operations are infallible by contract.
type RootRegistry interface {
	RegisterAddress(addr *Handle)
	UnregisterAddress(addr *Handle)
}

// NativeFn is the host call ABI for native methods: exactly two raw handles
// in (receiver, argument), one raw handle out. A native function signals
// failure by raising an exception on the runtime before returning NilHandle;
// it must never let a Go panic escape into the runtime.
type NativeFn func(recv, arg Handle) Handle

// MethodTable registers native functions under a method name with a declared
// arity. Only arity 1 is used by the pinned dispatch path.
type MethodTable interface {
	DefineMethod(class, name string, fn NativeFn, arity int) error
}

// Runtime is the slice of the managed runtime the pinning core interacts
// with. Any method that allocates or calls back into the runtime may trigger
// a collection pass; handle words not registered as roots are invalid
// afterwards.
type Runtime interface {
	// Roots returns the runtime's root registry.
	Roots() RootRegistry

	// KindOf reports the runtime class of the object behind h. It returns an
	// error for NilHandle and for handles invalidated by a collection.
	KindOf(h Handle) (string, error)

	// IdentityOf reports the stable identity of the object behind h. The
	// identity survives relocation; two handles reference the same object
	// exactly when their identities are equal.
	IdentityOf(h Handle) (string, error)

	// Call invokes a method on recv inside the runtime. This is a suspension
	// point: the collector may run before the method body executes. The
	// handles passed in are protected by the runtime for the duration of the
	// call; the caller's own copies of them are not.
	Call(recv Handle, name string, args ...Handle) (Handle, error)

	// Raise records exc as the pending exception for the dispatch in flight.
	// The runtime surfaces it to the host caller when the native function
	// returns.
	Raise(exc *Exception)

	// Constructors. Allocation may trigger a collection before the new
	// object is created; the returned handle is always current.
	NewString(s string) Handle
	NewInteger(v int64) Handle

	// Accessors for primitive payloads.
	StringValue(h Handle) (string, error)
	IntegerValue(h Handle) (int64, error)
}

// Exception is the host runtime's own error representation. Conversion
// failures and captured native faults are both expressed as Exceptions
// before control crosses back over the foreign-call boundary.
type Exception struct {
	Class   string
	Message string
}

// Well-known exception classes of the reference runtime.
const (
	TypeErrorClass     = "TypeError"
	RuntimeErrorClass  = "RuntimeError"
	NoMethodErrorClass = "NoMethodError"
)

// Well-known object classes of the reference runtime, used by the typed
// wrappers for dynamic-type validation.
const (
	StringClass  = "String"
	IntegerClass = "Integer"
)

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Exception implements the self-describing conversion used by the dispatch
// error translation.
func (e *Exception) Exception() *Exception { return e }

// RootStats is a snapshot of root-registry activity, used by the inspection
// service and by pairing tests.
type RootStats struct {
	Live            int
	Objects         int
	Registrations   uint64
	Deregistrations uint64
	Collections     int
}
