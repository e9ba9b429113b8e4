package method

import (
	"fmt"
	"runtime/debug"

	"github.com/ekroon/magnus/pkg/host"
)

// Fault is a native fatal unwind captured at the Invoking boundary: the
// recovered panic value plus the stack at the capture point. It travels the
// ordinary error channel of the dispatch and is re-expressed as a host
// exception before control crosses the foreign-call boundary.
type Fault struct {
	Value any
	Stack []byte
}

// NewFault records the recovered panic value and the current stack.
func NewFault(v any) *Fault {
	return &Fault{Value: v, Stack: debug.Stack()}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("panic in native method: %v", f.Value)
}

// Exception expresses the fault in the host runtime's representation. The
// host sees a recoverable RuntimeError, never the unwind itself.
func (f *Fault) Exception() *host.Exception {
	return &host.Exception{Class: host.RuntimeErrorClass, Message: f.Error()}
}

// Unwrap exposes a wrapped error when the panic value was one, so callers
// inspecting the dispatch error channel can use errors.Is/As through the
// fault.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}
