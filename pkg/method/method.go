// Package method adapts native Go functions with one pinned argument into
// the host call ABI.
//
// A dispatch moves through the states Entered, Converting-Self,
// Converting-Arg, Pinning-Arg, Invoking and finally Returning or Failing.
// Receiver conversion failure never touches the argument, the argument is
// registered as a root before the native body can call back into the
// runtime, and any panic raised inside the body is captured at the Invoking
// boundary and re-expressed as a host exception. A Go panic never crosses
// the foreign-call boundary.
//
// Only the one-receiver/one-pinned-argument shape exists; other arities are
// unrepresentable in this API and are rejected at compile time.
package method

import (
	"errors"
	"fmt"

	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/pin"
	"github.com/ekroon/magnus/pkg/value"
)

// Arity1 is the declared arity of every pinned method this package builds.
const Arity1 = 1

// Func1P is the shape of a native method body: a typed receiver and a guard
// holding the pinned argument. The body may call back into the runtime
// freely; the argument's handle word is registered before the body runs and
// stays current across collections. The body returns a result convertible to
// a handle, or an error to be raised as a host exception.
type Func1P[S any, T any] func(rt host.Runtime, recv S, arg *pin.Guard[T]) (value.Into, error)

// New1P wraps fn as a host-callable native function.
//
// On any failure — conversion error, error returned by fn, or a fault
// captured from fn — the error is translated into the host's exception
// representation and raised before NilHandle is returned across the
// boundary. The argument's guard has always been released by then.
func New1P[S any, PS interface {
	*S
	value.FromHandle
}, T any, PT interface {
	*T
	value.FromHandle
	value.Ref
}](rt host.Runtime, fn Func1P[S, T]) host.NativeFn {
	return func(recv, arg host.Handle) host.Handle {
		out, err := dispatch1P[S, PS, T, PT](rt, fn, recv, arg)
		if err != nil {
			rt.Raise(toException(err))
			return host.NilHandle
		}
		return out
	}
}

// Define1P registers fn in the host's method table under class/name with the
// declared arity of one.
func Define1P[S any, PS interface {
	*S
	value.FromHandle
}, T any, PT interface {
	*T
	value.FromHandle
	value.Ref
}](rt host.Runtime, table host.MethodTable, class, name string, fn Func1P[S, T]) error {
	return table.DefineMethod(class, name, New1P[S, PS, T, PT](rt, fn), Arity1)
}

func dispatch1P[S any, PS interface {
	*S
	value.FromHandle
}, T any, PT interface {
	*T
	value.FromHandle
	value.Ref
}](rt host.Runtime, fn Func1P[S, T], recv, arg host.Handle) (host.Handle, error) {
	// Converting-Self. A failure here goes straight to Failing: the argument
	// is never converted and nothing is registered.
	self, err := value.TryConvert[S, PS](rt, recv)
	if err != nil {
		return host.NilHandle, err
	}

	// Converting-Arg. Still nothing registered on failure.
	pinned, err := pin.TryConvertPinned[T, PT](rt, arg)
	if err != nil {
		return host.NilHandle, err
	}

	// Pinning-Arg. From here on the argument's word is a root; the deferred
	// Unpin releases it on every exit path, a captured fault included.
	g := pin.Pin[T, PT](rt.Roots(), pinned)
	defer g.Unpin()

	// Invoking, with fault capture around this state only.
	res, err := invoke(rt, fn, self, g)
	if err != nil {
		return host.NilHandle, err
	}

	// Returning.
	if res == nil {
		return host.NilHandle, nil
	}
	return res.IntoHandle(rt)
}

// invoke runs the native body under fault capture. Conversion and result
// handling stay outside the capture window on purpose: their failures travel
// the ordinary error channel.
func invoke[S any, T any](rt host.Runtime, fn Func1P[S, T], self S, g *pin.Guard[T]) (res value.Into, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFault(r)
		}
	}()
	return fn(rt, self, g)
}

// toException translates the dispatch error channel into the host's own
// exception representation. Errors that know their host form (type
// mismatches, faults, exceptions raised by callees) provide it themselves;
// anything else becomes a RuntimeError.
func toException(err error) *host.Exception {
	var self interface{ Exception() *host.Exception }
	if errors.As(err, &self) {
		return self.Exception()
	}
	return &host.Exception{
		Class:   host.RuntimeErrorClass,
		Message: fmt.Sprintf("native method failed: %v", err),
	}
}
