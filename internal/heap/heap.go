// Package heap is the reference host runtime: a compacting object heap with
// a moving collector, a method table for native functions, and a root
// registry that rewrites registered handle words when objects move.
//
// Every collection pass relocates every live object (a handle encodes a
// generation alongside a cell index, and the generation changes each pass),
// so any handle word the registry does not know about is invalid after a
// single collection. That is deliberately aggressive: it makes a missing pin
// an immediate, detectable error in tests rather than a latent one.
//
// The heap assumes a single in-flight host caller and performs no internal
// locking.
package heap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/ekroon/magnus/pkg/host"
)

// Heap implements host.Runtime, host.RootRegistry and host.MethodTable.
type Heap struct {
	cfg    Config
	traceW io.Writer

	cells   []cell
	gen     uint32
	allocs  int
	roots   map[*host.Handle]struct{}
	globals map[string]host.Handle
	stack   []host.Handle
	methods map[string]map[string]nativeMethod
	pending *host.Exception

	collections     int
	registrations   uint64
	deregistrations uint64
}

var errNilHandle = errors.New("nil handle")

// New creates a heap with the given configuration. Zero fields fall back to
// the defaults.
func New(cfg Config) *Heap {
	cfg.applyDefaults()
	return &Heap{
		cfg:     cfg,
		traceW:  os.Stderr,
		cells:   make([]cell, 0, cfg.InitialCapacity),
		roots:   make(map[*host.Handle]struct{}),
		globals: make(map[string]host.Handle),
		methods: make(map[string]map[string]nativeMethod),
	}
}

// SetTraceWriter redirects collection tracing. Used by tests and the demo.
func (h *Heap) SetTraceWriter(w io.Writer) { h.traceW = w }

// handleAt encodes the current generation and a cell index into a handle.
// Index zero maps to word one so that NilHandle never collides with a live
// object.
func (h *Heap) handleAt(idx int) host.Handle {
	return host.Handle(uint64(h.gen)<<32 | uint64(idx+1))
}

func decode(w host.Handle) (gen uint32, idx int, ok bool) {
	if w == host.NilHandle {
		return 0, 0, false
	}
	return uint32(w >> 32), int(uint32(w)) - 1, true
}

// lookup resolves a handle to its object. The returned pointer is only valid
// until the next allocation or collection; callers copy what they need.
func (h *Heap) lookup(w host.Handle) (*object, error) {
	gen, idx, ok := decode(w)
	if !ok {
		return nil, errNilHandle
	}
	if gen != h.gen {
		return nil, fmt.Errorf("stale handle %#x: object moved by collection (generation %d, now %d)", uint64(w), gen, h.gen)
	}
	if idx < 0 || idx >= len(h.cells) {
		return nil, fmt.Errorf("dangling handle %#x: no such object", uint64(w))
	}
	return &h.cells[idx].obj, nil
}

// alloc places an object on the heap, collecting first when the allocation
// budget is spent. The returned handle is always of the current generation.
func (h *Heap) alloc(o object) host.Handle {
	if h.cfg.GCInterval > 0 && h.allocs >= h.cfg.GCInterval {
		h.Collect()
	}
	h.cells = append(h.cells, cell{obj: o})
	h.allocs++
	return h.handleAt(len(h.cells) - 1)
}

// Collect runs one mark-compact pass. Reachability is defined by the
// registered root addresses, the host globals and the in-flight host call
// stack. Every survivor moves: the generation is bumped and cells are
// renumbered, then every word the collector knows about is rewritten in
// place. Unregistered copies are left behind and become stale.
func (h *Heap) Collect() {
	live := make([]bool, len(h.cells))
	mark := func(w host.Handle) {
		gen, idx, ok := decode(w)
		if !ok || gen != h.gen || idx < 0 || idx >= len(h.cells) {
			return
		}
		live[idx] = true
	}
	for addr := range h.roots {
		mark(*addr)
	}
	for _, w := range h.stack {
		mark(w)
	}
	for _, w := range h.globals {
		mark(w)
	}

	oldGen := h.gen
	remap := make(map[int]int)
	compacted := make([]cell, 0, len(h.cells))
	for i := range h.cells {
		if live[i] {
			remap[i] = len(compacted)
			compacted = append(compacted, h.cells[i])
		}
	}
	h.gen++
	h.cells = compacted

	rewrite := func(w host.Handle) host.Handle {
		gen, idx, ok := decode(w)
		if !ok || gen != oldGen {
			return w
		}
		n, moved := remap[idx]
		if !moved {
			return w
		}
		return h.handleAt(n)
	}
	for addr := range h.roots {
		*addr = rewrite(*addr)
	}
	for i := range h.stack {
		h.stack[i] = rewrite(h.stack[i])
	}
	for name, w := range h.globals {
		h.globals[name] = rewrite(w)
	}

	h.allocs = 0
	h.collections++
	if h.cfg.TraceGC {
		fmt.Fprintf(h.traceW, "[gc] pass %d: %d live, %d roots, generation %d\n",
			h.collections, len(h.cells), len(h.roots), h.gen)
	}
}

// RegisterAddress marks a native memory location as a GC root.
func (h *Heap) RegisterAddress(addr *host.Handle) {
	h.roots[addr] = struct{}{}
	h.registrations++
}

// UnregisterAddress removes a previously registered location. Calling it on
// an address that was never registered is undefined; the reference heap
// simply forgets nothing in that case.
func (h *Heap) UnregisterAddress(addr *host.Handle) {
	delete(h.roots, addr)
	h.deregistrations++
}

// Roots returns the heap's root registry.
func (h *Heap) Roots() host.RootRegistry { return h }

// KindOf reports the runtime class of the object behind w.
func (h *Heap) KindOf(w host.Handle) (string, error) {
	o, err := h.lookup(w)
	if err != nil {
		return "", err
	}
	return o.kind, nil
}

// IdentityOf reports the relocation-stable identity of the object behind w.
func (h *Heap) IdentityOf(w host.Handle) (string, error) {
	o, err := h.lookup(w)
	if err != nil {
		return "", err
	}
	return o.id.String(), nil
}

// NewString allocates a String object.
func (h *Heap) NewString(s string) host.Handle {
	return h.alloc(object{id: uuid.New(), kind: host.StringClass, str: s})
}

// NewInteger allocates an Integer object.
func (h *Heap) NewInteger(v int64) host.Handle {
	return h.alloc(object{id: uuid.New(), kind: host.IntegerClass, num: v})
}

// StringValue reads the payload of a String object.
func (h *Heap) StringValue(w host.Handle) (string, error) {
	o, err := h.lookup(w)
	if err != nil {
		return "", err
	}
	if o.kind != host.StringClass {
		return "", fmt.Errorf("expected %s, got %s", host.StringClass, o.kind)
	}
	return o.str, nil
}

// IntegerValue reads the payload of an Integer object.
func (h *Heap) IntegerValue(w host.Handle) (int64, error) {
	o, err := h.lookup(w)
	if err != nil {
		return 0, err
	}
	if o.kind != host.IntegerClass {
		return 0, fmt.Errorf("expected %s, got %s", host.IntegerClass, o.kind)
	}
	return o.num, nil
}

// Raise records the pending exception for the dispatch in flight.
func (h *Heap) Raise(exc *host.Exception) { h.pending = exc }

// SetGlobal stores a handle in a named global slot. Globals are roots: the
// collector keeps their referents alive and rewrites the stored words on
// relocation. The host side of tests and the demo parks handles here the
// same way a real runtime protects its own references.
func (h *Heap) SetGlobal(name string, w host.Handle) { h.globals[name] = w }

// Global reads a named global slot.
func (h *Heap) Global(name string) (host.Handle, bool) {
	w, ok := h.globals[name]
	return w, ok
}

// RootStats reports a snapshot of registry and collector activity.
func (h *Heap) RootStats() host.RootStats {
	return host.RootStats{
		Live:            len(h.roots),
		Objects:         len(h.cells),
		Registrations:   h.registrations,
		Deregistrations: h.deregistrations,
		Collections:     h.collections,
	}
}
