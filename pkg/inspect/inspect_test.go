package inspect

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ekroon/magnus/pkg/host"
)

type fakeSource struct {
	stats host.RootStats
}

func (f *fakeSource) RootStats() host.RootStats { return f.stats }

func TestServiceDescriptor(t *testing.T) {
	sd, err := serviceDescriptor()
	if err != nil {
		t.Fatalf("descriptor failed to build: %v", err)
	}
	if sd.GetFullyQualifiedName() != serviceName {
		t.Errorf("service name = %s", sd.GetFullyQualifiedName())
	}
	if sd.FindMethodByName(getRootsMethod) == nil {
		t.Errorf("method %s missing from descriptor", getRootsMethod)
	}
}

func TestRoundTrip(t *testing.T) {
	src := &fakeSource{stats: host.RootStats{
		Live:            2,
		Objects:         5,
		Registrations:   11,
		Deregistrations: 9,
		Collections:     4,
	}}

	srv, err := NewServer(src)
	if err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := FetchRoots(ctx, lis.Addr().String())
	if err != nil {
		t.Fatalf("FetchRoots failed: %v", err)
	}
	if got != src.stats {
		t.Errorf("snapshot mismatch: got %+v, want %+v", got, src.stats)
	}
}

func TestFetchRootsUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := FetchRoots(ctx, "127.0.0.1:1"); err == nil {
		t.Fatalf("expected an RPC failure against a closed port")
	}
}
