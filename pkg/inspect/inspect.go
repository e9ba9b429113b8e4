// Package inspect exposes root-registry activity over gRPC for tooling.
//
// The service descriptor is built at runtime from an embedded .proto source
// and served with dynamic messages, so no generated code is involved.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/ekroon/magnus/pkg/host"
)

const (
	protoFile   = "magnus/inspect.proto"
	serviceName = "magnus.inspect.RootInspector"

	getRootsMethod = "GetRoots"
)

const protoSource = `syntax = "proto3";

package magnus.inspect;

message RootsRequest {}

message RootsSnapshot {
  uint64 live = 1;
  uint64 objects = 2;
  uint64 registrations = 3;
  uint64 deregistrations = 4;
  uint64 collections = 5;
}

service RootInspector {
  rpc GetRoots(RootsRequest) returns (RootsSnapshot);
}
`

var (
	descOnce sync.Once
	descSvc  *desc.ServiceDescriptor
	descErr  error
)

// serviceDescriptor parses the embedded proto once and resolves the service.
func serviceDescriptor() (*desc.ServiceDescriptor, error) {
	descOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: protoSource}),
		}
		fds, err := parser.ParseFiles(protoFile)
		if err != nil {
			descErr = fmt.Errorf("parsing inspection proto: %w", err)
			return
		}
		sd := fds[0].FindService(serviceName)
		if sd == nil {
			descErr = errors.New("service " + serviceName + " not found in descriptor")
			return
		}
		descSvc = sd
	})
	return descSvc, descErr
}

// Source provides the statistics snapshots the service serves. The reference
// heap implements it; so does any recording registry wrapper.
type Source interface {
	RootStats() host.RootStats
}

// Server serves root-registry snapshots.
type Server struct {
	src  Source
	grpc *grpc.Server
}

// NewServer builds a server around src and registers the dynamic service.
func NewServer(src Source) (*Server, error) {
	sd, err := serviceDescriptor()
	if err != nil {
		return nil, err
	}

	s := &Server{src: src, grpc: grpc.NewServer()}

	svcDesc := &grpc.ServiceDesc{
		ServiceName: sd.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Metadata:    sd.GetFile().GetName(),
	}
	for _, method := range sd.GetMethods() {
		md := method
		svcDesc.Methods = append(svcDesc.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return srv.(*Server).handleUnary(ctx, md, dec)
			},
		})
	}
	s.grpc.RegisterService(svcDesc, s)
	return s, nil
}

func (s *Server) handleUnary(_ context.Context, md *desc.MethodDescriptor, dec func(interface{}) error) (interface{}, error) {
	in := dynamic.NewMessage(md.GetInputType())
	if err := dec(in); err != nil {
		return nil, err
	}

	switch md.GetName() {
	case getRootsMethod:
		stats := s.src.RootStats()
		out := dynamic.NewMessage(md.GetOutputType())
		fields := map[string]uint64{
			"live":            uint64(stats.Live),
			"objects":         uint64(stats.Objects),
			"registrations":   stats.Registrations,
			"deregistrations": stats.Deregistrations,
			"collections":     uint64(stats.Collections),
		}
		for name, v := range fields {
			if err := out.TrySetFieldByName(name, v); err != nil {
				return nil, fmt.Errorf("building snapshot: %w", err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("method %s not implemented", md.GetName())
}

// Serve blocks serving on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error { return s.grpc.Serve(lis) }

// Stop drains in-flight RPCs and stops the server.
func (s *Server) Stop() { s.grpc.GracefulStop() }
