package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "journal.v1.SessionService"

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// SessionServiceServer is the server API for SessionService. States and
// entries travel as google.protobuf.Struct in their JSON shape.
type SessionServiceServer interface {
	StartListening(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopListening(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResetTranscript(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchState(*emptypb.Empty, SessionService_WatchStateServer) error

	SaveEntry(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListEntries(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetEntry(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	UpdateEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEntry(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// SessionService_WatchStateServer streams state snapshots to the client.
type SessionService_WatchStateServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchStateServer struct {
	grpc.ServerStream
}

func (x *watchStateServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// unary builds the method descriptor for a unary call.
func unary[Req proto.Message](name string, newReq func() Req, call func(SessionServiceServer, context.Context, Req) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SessionServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(Req))
			})
		},
	}
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

// SessionService_ServiceDesc describes SessionService for grpc.Server.RegisterService.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartListening", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.StartListening(ctx, in)
		}),
		unary("StopListening", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.StopListening(ctx, in)
		}),
		unary("ResetTranscript", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.ResetTranscript(ctx, in)
		}),
		unary("GetState", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.GetState(ctx, in)
		}),
		unary("SaveEntry", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.SaveEntry(ctx, in)
		}),
		unary("ListEntries", newEmpty, func(s SessionServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.ListEntries(ctx, in)
		}),
		unary("GetEntry", newString, func(s SessionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.GetEntry(ctx, in)
		}),
		unary("UpdateEntry", newStruct, func(s SessionServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.UpdateEntry(ctx, in)
		}),
		unary("DeleteEntry", newString, func(s SessionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.DeleteEntry(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "WatchState",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SessionServiceServer).WatchState(in, &watchStateServer{stream})
			},
			ServerStreams: true,
		},
	},
	Metadata: "journal/v1/session.proto",
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
