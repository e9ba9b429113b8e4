package heap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ekroon/magnus/pkg/host"

	"github.com/ekroon/magnus/internal/config"
)

// DefineMethod registers a native function for class under name with its
// declared arity.
func (h *Heap) DefineMethod(class, name string, fn host.NativeFn, arity int) error {
	if fn == nil {
		return errors.New("nil native function")
	}
	if arity != 1 {
		return fmt.Errorf("unsupported native arity %d for %s#%s", arity, class, name)
	}
	if h.methods[class] == nil {
		h.methods[class] = make(map[string]nativeMethod)
	}
	if _, dup := h.methods[class][name]; dup {
		return fmt.Errorf("method %s#%s already defined", class, name)
	}
	h.methods[class][name] = nativeMethod{fn: fn, arity: arity}
	return nil
}

// Invoke is the host-side entry into a native method: the runtime calls a
// registered function with raw handles. The receiver and argument are
// protected on the host call stack for the duration; a collection may run
// before the native body executes, so the words handed to the function are
// always current. A pending exception raised by the function is returned in
// place of a result.
func (h *Heap) Invoke(recv host.Handle, name string, arg host.Handle) (host.Handle, *host.Exception) {
	base := len(h.stack)
	h.stack = append(h.stack, recv, arg)
	defer func() { h.stack = h.stack[:base] }()

	if h.cfg.CollectOnCall {
		h.Collect()
	}
	recv, arg = h.stack[base], h.stack[base+1]

	o, err := h.lookup(recv)
	if err != nil {
		return host.NilHandle, &host.Exception{Class: host.RuntimeErrorClass, Message: err.Error()}
	}
	m, ok := h.methods[o.kind][name]
	if !ok {
		return host.NilHandle, &host.Exception{
			Class:   host.NoMethodErrorClass,
			Message: fmt.Sprintf("undefined method '%s' for %s", name, o.kind),
		}
	}

	h.pending = nil
	out := m.fn(recv, arg)
	if h.pending != nil {
		exc := h.pending
		h.pending = nil
		return host.NilHandle, exc
	}
	return out, nil
}

// Call invokes a method on recv from inside native code. This is the
// suspension point of the model: when collectOnCall is set, a full
// collection pass runs before the method body, relocating every live object.
// The receiver and arguments are protected on the host call stack for the
// duration of the call; the caller's own copies of those words are not.
func (h *Heap) Call(recv host.Handle, name string, args ...host.Handle) (host.Handle, error) {
	base := len(h.stack)
	h.stack = append(h.stack, recv)
	h.stack = append(h.stack, args...)
	defer func() { h.stack = h.stack[:base] }()

	if h.cfg.CollectOnCall {
		h.Collect()
	}
	recv = h.stack[base]
	for i := range args {
		args[i] = h.stack[base+1+i]
	}

	kind, err := h.KindOf(recv)
	if err != nil {
		return host.NilHandle, err
	}

	if out, handled, err := h.callBuiltin(kind, recv, name, args); handled {
		return out, err
	}

	// Native methods are callable from the runtime side too.
	if m, ok := h.methods[kind][name]; ok {
		arg := host.NilHandle
		if len(args) > 0 {
			arg = args[0]
		}
		h.pending = nil
		out := m.fn(recv, arg)
		if h.pending != nil {
			exc := h.pending
			h.pending = nil
			return host.NilHandle, exc
		}
		return out, nil
	}

	return host.NilHandle, &host.Exception{
		Class:   host.NoMethodErrorClass,
		Message: fmt.Sprintf("undefined method '%s' for %s", name, kind),
	}
}

// callBuiltin handles the runtime's own methods. Payloads are copied out
// before any allocation: allocating can trigger a collection, which
// invalidates object pointers and unprotected handles.
func (h *Heap) callBuiltin(kind string, recv host.Handle, name string, args []host.Handle) (host.Handle, bool, error) {
	switch name {
	case config.ItselfMethodName:
		return recv, true, nil

	case config.InspectMethodName:
		o, err := h.lookup(recv)
		if err != nil {
			return host.NilHandle, true, err
		}
		s := o.inspect()
		return h.NewString(s), true, nil
	}

	switch kind {
	case host.StringClass:
		switch name {
		case config.UpcaseMethodName:
			s, err := h.StringValue(recv)
			if err != nil {
				return host.NilHandle, true, err
			}
			return h.NewString(strings.ToUpper(s)), true, nil

		case config.ConcatMethodName:
			if len(args) != 1 {
				return host.NilHandle, true, fmt.Errorf("concat expects 1 argument, got %d", len(args))
			}
			s, err := h.StringValue(recv)
			if err != nil {
				return host.NilHandle, true, err
			}
			t, err := h.StringValue(args[0])
			if err != nil {
				return host.NilHandle, true, err
			}
			return h.NewString(s + t), true, nil

		case config.LengthMethodName:
			s, err := h.StringValue(recv)
			if err != nil {
				return host.NilHandle, true, err
			}
			return h.NewInteger(int64(len(s))), true, nil
		}

	case host.IntegerClass:
		switch name {
		case config.SuccMethodName:
			n, err := h.IntegerValue(recv)
			if err != nil {
				return host.NilHandle, true, err
			}
			return h.NewInteger(n + 1), true, nil

		case config.ToSMethodName:
			n, err := h.IntegerValue(recv)
			if err != nil {
				return host.NilHandle, true, err
			}
			return h.NewString(fmt.Sprintf("%d", n)), true, nil
		}
	}

	return host.NilHandle, false, nil
}
