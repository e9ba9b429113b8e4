package inspect

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ekroon/magnus/pkg/host"
)

// FetchRoots retrieves a root-registry snapshot from a running inspection
// server using a dynamic invocation of the embedded service descriptor.
func FetchRoots(ctx context.Context, target string) (host.RootStats, error) {
	sd, err := serviceDescriptor()
	if err != nil {
		return host.RootStats{}, err
	}
	md := sd.FindMethodByName(getRootsMethod)
	if md == nil {
		return host.RootStats{}, fmt.Errorf("method %s not found in descriptor", getRootsMethod)
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return host.RootStats{}, fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer conn.Close()

	req := dynamic.NewMessage(md.GetInputType())
	resp := dynamic.NewMessage(md.GetOutputType())

	fullMethod := "/" + sd.GetFullyQualifiedName() + "/" + getRootsMethod
	if err := conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return host.RootStats{}, fmt.Errorf("RPC failed: %w", err)
	}

	return host.RootStats{
		Live:            int(fieldUint64(resp, "live")),
		Objects:         int(fieldUint64(resp, "objects")),
		Registrations:   fieldUint64(resp, "registrations"),
		Deregistrations: fieldUint64(resp, "deregistrations"),
		Collections:     int(fieldUint64(resp, "collections")),
	}, nil
}

func fieldUint64(m *dynamic.Message, name string) uint64 {
	v, err := m.TryGetFieldByName(name)
	if err != nil {
		return 0
	}
	n, _ := v.(uint64)
	return n
}
