package pin

import (
	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/value"
)

// TryConvertPinned converts a raw handle into a heap-resident, pinned
// wrapper around the typed value T.
//
// Dynamic-type validation is delegated to value.TryConvert. On failure no
// partial state exists and in particular nothing has been registered:
// registration only ever happens after a successful, heap-resident wrapper
// is handed to Pin, which keeps the error path free of spurious GC-root
// side effects.
func TryConvertPinned[T any, PT interface {
	*T
	value.FromHandle
}](rt host.Runtime, h host.Handle) (*Pinned[T], error) {
	v, err := value.TryConvert[T, PT](rt, h)
	if err != nil {
		return nil, err
	}
	return New(v), nil
}
