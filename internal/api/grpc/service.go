package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "vfx.changelog.v1.ChangeLogService"

const (
	MethodListEntries = "/" + ServiceName + "/ListEntries"
	MethodUndoEntry   = "/" + ServiceName + "/UndoEntry"
)

// ChangeLogServer is the server API of the change log service. Requests and
// responses are google.protobuf.Struct documents carrying the JSON shapes of
// the HTTP API.
type ChangeLogServer interface {
	ListEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UndoEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func listEntriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChangeLogServer).ListEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListEntries}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChangeLogServer).ListEntries(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func undoEntryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChangeLogServer).UndoEntry(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodUndoEntry}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChangeLogServer).UndoEntry(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var ChangeLogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChangeLogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListEntries", Handler: listEntriesHandler},
		{MethodName: "UndoEntry", Handler: undoEntryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vfx/changelog/v1/changelog.proto",
}

func RegisterChangeLogServer(s grpc.ServiceRegistrar, srv ChangeLogServer) {
	s.RegisterService(&ChangeLogServiceDesc, srv)
}

// ChangeLogClient calls the change log service over a client connection.
type ChangeLogClient struct {
	cc grpc.ClientConnInterface
}

func NewChangeLogClient(cc grpc.ClientConnInterface) *ChangeLogClient {
	return &ChangeLogClient{cc: cc}
}

func (c *ChangeLogClient) ListEntries(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListEntries, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChangeLogClient) UndoEntry(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodUndoEntry, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
