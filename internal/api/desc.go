package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "zpw.v1.UndoService"

// Method names on UndoService.
const (
	MethodGetStatus         = "GetStatus"
	MethodReloadCredentials = "ReloadCredentials"
	MethodTrackMessage      = "TrackMessage"
	MethodListMessages      = "ListMessages"
	MethodUndo              = "Undo"
	MethodQueueUndo         = "QueueUndo"
	MethodGetUndo           = "GetUndo"
	MethodWatchEvents       = "WatchEvents"
)

// FullMethod returns the wire path for a method, e.g. "/zpw.v1.UndoService/Undo".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// UndoServer is the server side of UndoService. Requests and responses are
// structpb objects whose fields are documented on each codec helper.
type UndoServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TrackMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueueUndo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUndo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(UndoServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(UndoServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(UndoServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes UndoService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UndoServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, UndoServer.GetStatus),
		unary(MethodReloadCredentials, UndoServer.ReloadCredentials),
		unary(MethodTrackMessage, UndoServer.TrackMessage),
		unary(MethodListMessages, UndoServer.ListMessages),
		unary(MethodUndo, UndoServer.Undo),
		unary(MethodQueueUndo, UndoServer.QueueUndo),
		unary(MethodGetUndo, UndoServer.GetUndo),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(UndoServer).WatchEvents(in, stream)
			},
		},
	},
	Metadata: "zpw/v1/undo.proto",
}

// RegisterUndoServer registers srv on s.
func RegisterUndoServer(s grpc.ServiceRegistrar, srv UndoServer) {
	s.RegisterService(&ServiceDesc, srv)
}
