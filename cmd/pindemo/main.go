// Command pindemo wires the pinning toolkit to the reference heap: it
// defines a native method with one pinned argument, drives a host call that
// relocates every object mid-method, and reports root-registry pairing
// afterwards. With -inspect it also serves the gRPC inspection endpoint and
// fetches one snapshot through the dynamic client.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ekroon/magnus/internal/config"
	"github.com/ekroon/magnus/internal/heap"
	"github.com/ekroon/magnus/pkg/host"
	"github.com/ekroon/magnus/pkg/inspect"
	"github.com/ekroon/magnus/pkg/method"
	"github.com/ekroon/magnus/pkg/pin"
	"github.com/ekroon/magnus/pkg/value"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func green(s string) string { return colorize("32", s) }
func red(s string) string   { return colorize("31", s) }
func dim(s string) string   { return colorize("2", s) }

// shout is the demo native method: SHOUT = receiver + upcased argument.
// The argument arrives pinned; the receiver is a plain native copy, so it is
// pinned explicitly before the first host call relocates the heap.
func shout(rt host.Runtime, recv value.Str, arg *pin.Guard[value.Str]) (value.Into, error) {
	self := pin.PinUnchecked[value.Str](rt.Roots(), &recv)
	defer self.Unpin()

	// Suspension point: with collectOnCall every object moves here. The
	// pinned words are rewritten in place; unpinned copies would go stale.
	up, err := rt.Call(arg.Value().Raw(), config.UpcaseMethodName)
	if err != nil {
		return nil, err
	}

	out, err := rt.Call(self.Value().Raw(), config.ConcatMethodName, up)
	if err != nil {
		return nil, err
	}
	return value.Raw(out), nil
}

func run() error {
	configPath := flag.String("config", "", "heap configuration YAML")
	inspectAddr := flag.String("inspect", "", "serve the root inspection endpoint on this address")
	trace := flag.Bool("trace", false, "trace collection passes")
	flag.Parse()

	cfg := heap.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = heap.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	cfg.TraceGC = cfg.TraceGC || *trace

	h := heap.New(cfg)
	h.SetTraceWriter(os.Stdout)

	if err := method.Define1P(h, h, host.StringClass, "shout", shout); err != nil {
		return err
	}

	// The host side parks its handles in globals, the way a real runtime
	// protects its own references across collections.
	h.SetGlobal("greeting", h.NewString("hello "))
	h.SetGlobal("name", h.NewString("world"))

	greeting, _ := h.Global("greeting")
	name, _ := h.Global("name")

	out, exc := h.Invoke(greeting, "shout", name)
	if exc != nil {
		return fmt.Errorf("dispatch failed: %s", red(exc.Error()))
	}
	s, err := h.StringValue(out)
	if err != nil {
		return err
	}
	fmt.Printf("result: %s\n", green(s))

	stats := h.RootStats()
	fmt.Printf("%s\n", dim(fmt.Sprintf(
		"roots: %d live, %d registered / %d released over %d collections",
		stats.Live, stats.Registrations, stats.Deregistrations, stats.Collections)))

	if *inspectAddr != "" {
		if err := serveInspection(h, *inspectAddr); err != nil {
			return err
		}
	}
	return nil
}

func serveInspection(h *heap.Heap, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv, err := inspect.NewServer(h)
	if err != nil {
		return err
	}
	defer srv.Stop()
	go func() { _ = srv.Serve(lis) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := inspect.FetchRoots(ctx, lis.Addr().String())
	if err != nil {
		return err
	}
	fmt.Printf("inspection snapshot from %s: %+v\n", lis.Addr(), stats)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}
