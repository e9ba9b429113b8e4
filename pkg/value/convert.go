package value

import (
	"fmt"

	"github.com/ekroon/magnus/pkg/host"
)

// TypeMismatchError reports that a handle's dynamic type does not satisfy
// the target wrapper's expected runtime class. It is recoverable and is
// surfaced to the host as a TypeError before any pinning occurs.
type TypeMismatchError struct {
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("no implicit conversion of %s into %s", e.Got, e.Want)
}

// Exception expresses the mismatch in the host runtime's own representation.
func (e *TypeMismatchError) Exception() *host.Exception {
	return &host.Exception{Class: host.TypeErrorClass, Message: e.Error()}
}

// TryConvert converts a raw handle into the typed wrapper T, validating the
// handle's dynamic type. On failure the zero T is returned along with the
// conversion error; no other state is touched.
//
// The PT parameter is inferred: TryConvert[value.Str](rt, h) is all a caller
// writes.
func TryConvert[T any, PT interface {
	*T
	FromHandle
}](rt host.Runtime, h host.Handle) (T, error) {
	var v T
	if err := PT(&v).FromHandle(rt, h); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
