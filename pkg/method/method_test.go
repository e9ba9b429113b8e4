package method

import (
	"errors"
	"strings"
	"testing"

	"github.com/ekroon/magnus/internal/config"
	"github.com/ekroon/magnus/internal/heap"
	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/pin"
	"github.com/ekroon/magnus/pkg/value"
)

// movingHeap collects on every call boundary, so any handle word that is not
// a registered root goes stale the moment the native body calls back in.
func movingHeap() *heap.Heap {
	cfg := heap.DefaultConfig()
	cfg.GCInterval = 0
	cfg.CollectOnCall = true
	return heap.New(cfg)
}

func TestReceiverMismatchSkipsArgument(t *testing.T) {
	h := movingHeap()

	called := false
	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		called = true
		return nil, nil
	}
	// Registered for Integer receivers, but the typed receiver wants String:
	// receiver conversion fails before the argument is ever looked at.
	if err := Define1P(h, h, host.IntegerClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	recv := h.NewInteger(1)
	h.SetGlobal("arg", h.NewString("x"))
	arg, _ := h.Global("arg")

	_, exc := h.Invoke(recv, "m", arg)
	if exc == nil || exc.Class != host.TypeErrorClass {
		t.Fatalf("expected TypeError, got %v", exc)
	}
	if called {
		t.Errorf("native body ran despite receiver mismatch")
	}
	if stats := h.RootStats(); stats.Registrations != 0 {
		t.Errorf("receiver mismatch must not register roots, got %d", stats.Registrations)
	}
}

func TestArgumentMismatchRegistersNothing(t *testing.T) {
	h := movingHeap()

	called := false
	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		called = true
		return nil, nil
	}
	if err := Define1P(h, h, host.StringClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	h.SetGlobal("recv", h.NewString("r"))
	recv, _ := h.Global("recv")
	arg := h.NewInteger(2)

	_, exc := h.Invoke(recv, "m", arg)
	if exc == nil || exc.Class != host.TypeErrorClass {
		t.Fatalf("expected TypeError, got %v", exc)
	}
	if called {
		t.Errorf("native body ran despite argument mismatch")
	}
	if stats := h.RootStats(); stats.Registrations != 0 {
		t.Errorf("argument mismatch must not register roots, got %d", stats.Registrations)
	}
}

func TestPinnedArgumentSurvivesRelocation(t *testing.T) {
	h := movingHeap()

	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		// Suspension point: every live object relocates here. The pinned
		// word is rewritten in place.
		up, err := rt.Call(arg.Value().Raw(), config.UpcaseMethodName)
		if err != nil {
			return nil, err
		}
		s, err := rt.StringValue(arg.Value().Raw())
		if err != nil {
			return nil, err
		}
		us, err := rt.StringValue(up)
		if err != nil {
			return nil, err
		}
		return value.Text(s + "/" + us), nil
	}
	if err := Define1P(h, h, host.StringClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	h.SetGlobal("recv", h.NewString("r"))
	h.SetGlobal("arg", h.NewString("abc"))
	recv, _ := h.Global("recv")
	arg, _ := h.Global("arg")

	out, exc := h.Invoke(recv, "m", arg)
	if exc != nil {
		t.Fatalf("dispatch failed: %v", exc)
	}
	if s, err := h.StringValue(out); err != nil || s != "abc/ABC" {
		t.Fatalf("result = %q, %v", s, err)
	}

	stats := h.RootStats()
	if stats.Registrations != 1 || stats.Deregistrations != 1 {
		t.Errorf("pin pairing broken: %d registered, %d released",
			stats.Registrations, stats.Deregistrations)
	}
	if stats.Live != 0 {
		t.Errorf("guard leaked %d live roots", stats.Live)
	}
}

func TestPanicBecomesRuntimeError(t *testing.T) {
	h := movingHeap()

	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		panic("boom")
	}
	if err := Define1P(h, h, host.StringClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	h.SetGlobal("recv", h.NewString("r"))
	h.SetGlobal("arg", h.NewString("a"))
	recv, _ := h.Global("recv")
	arg, _ := h.Global("arg")

	out, exc := h.Invoke(recv, "m", arg)
	if exc == nil || exc.Class != host.RuntimeErrorClass {
		t.Fatalf("expected RuntimeError, got %v", exc)
	}
	if !strings.Contains(exc.Message, "boom") {
		t.Errorf("panic value lost: %q", exc.Message)
	}
	if out != host.NilHandle {
		t.Errorf("faulted dispatch returned a handle")
	}
	if stats := h.RootStats(); stats.Live != 0 || stats.Deregistrations != 1 {
		t.Errorf("guard not released across fault: %+v", stats)
	}
}

func TestErrorSurfacesOwnException(t *testing.T) {
	h := movingHeap()

	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		return nil, &host.Exception{Class: host.NoMethodErrorClass, Message: "delegated"}
	}
	if err := Define1P(h, h, host.StringClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	h.SetGlobal("recv", h.NewString("r"))
	h.SetGlobal("arg", h.NewString("a"))
	recv, _ := h.Global("recv")
	arg, _ := h.Global("arg")

	_, exc := h.Invoke(recv, "m", arg)
	if exc == nil || exc.Class != host.NoMethodErrorClass || exc.Message != "delegated" {
		t.Fatalf("exception not passed through: %v", exc)
	}
}

func TestMoveOutRoundTrip(t *testing.T) {
	h := movingHeap()

	var box *value.BoxValue[value.Str]
	fn := func(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
		box = pin.IntoRooted[value.Str](arg)
		return value.Text("moved"), nil
	}
	if err := Define1P(h, h, host.StringClass, "m", fn); err != nil {
		t.Fatal(err)
	}

	h.SetGlobal("recv", h.NewString("r"))
	h.SetGlobal("arg", h.NewString("durable"))
	recv, _ := h.Global("recv")
	arg, _ := h.Global("arg")
	id, _ := h.IdentityOf(arg)

	if _, exc := h.Invoke(recv, "m", arg); exc != nil {
		t.Fatalf("dispatch failed: %v", exc)
	}
	if box == nil {
		t.Fatal("move-out did not produce a box")
	}

	// The box outlives the dispatch and keeps its referent across further
	// collections.
	h.Collect()
	h.Collect()
	if s, err := box.Value().Value(h); err != nil || s != "durable" {
		t.Fatalf("boxed value broken: %q, %v", s, err)
	}
	if id2, _ := h.IdentityOf(box.Value().Raw()); id2 != id {
		t.Errorf("move-out changed object identity")
	}

	box.Release()
	stats := h.RootStats()
	if stats.Registrations != 2 || stats.Deregistrations != 2 || stats.Live != 0 {
		t.Errorf("transfer pairing broken: %+v", stats)
	}
}

func TestToException(t *testing.T) {
	if exc := toException(errors.New("plain")); exc.Class != host.RuntimeErrorClass {
		t.Errorf("plain error should become RuntimeError, got %s", exc.Class)
	}

	mismatch := &value.TypeMismatchError{Want: host.StringClass, Got: host.IntegerClass}
	if exc := toException(mismatch); exc.Class != host.TypeErrorClass {
		t.Errorf("mismatch should become TypeError, got %s", exc.Class)
	}

	own := &host.Exception{Class: host.NoMethodErrorClass, Message: "x"}
	if exc := toException(own); exc != own {
		t.Errorf("host exception should pass through unchanged")
	}

	if exc := toException(NewFault("dead")); exc.Class != host.RuntimeErrorClass {
		t.Errorf("fault should become RuntimeError, got %s", exc.Class)
	}
}

func TestFaultUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	f := NewFault(cause)
	if !errors.Is(f, cause) {
		t.Errorf("fault should unwrap to the panicked error")
	}
	if len(f.Stack) == 0 {
		t.Errorf("fault should carry the capture-point stack")
	}

	if NewFault("text").Unwrap() != nil {
		t.Errorf("non-error panic value should not unwrap")
	}
}
