package heap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ekroon/magnus/pkg/host"
)

// object is a single heap-resident value. Objects live in cells and are
// relocated wholesale on every collection pass; the id is the only property
// that survives relocation unchanged and is what "same object" means to the
// runtime.
type object struct {
	id   uuid.UUID
	kind string
	str  string
	num  int64
}

func (o object) inspect() string {
	switch o.kind {
	case host.StringClass:
		return fmt.Sprintf("%q", o.str)
	case host.IntegerClass:
		return fmt.Sprintf("%d", o.num)
	default:
		return fmt.Sprintf("#<%s %s>", o.kind, o.id)
	}
}

type cell struct {
	obj object
}

// nativeMethod is an entry in the method table.
type nativeMethod struct {
	fn    host.NativeFn
	arity int
}
