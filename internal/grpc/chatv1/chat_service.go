// Package chatv1 declares the flightchat.v1.ChatService gRPC contract.
//
// Requests and responses are google.protobuf.Struct values so the service
// can carry free-form telemetry without generated message types.
package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "flightchat.v1.ChatService"

const (
	ChatService_Ask_FullMethodName          = "/flightchat.v1.ChatService/Ask"
	ChatService_Analyse_FullMethodName      = "/flightchat.v1.ChatService/Analyse"
	ChatService_ResetSession_FullMethodName = "/flightchat.v1.ChatService/ResetSession"
)

// ChatServiceClient is the client API for ChatService.
type ChatServiceClient interface {
	Ask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Analyse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ResetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient wraps a connection in the ChatService client API.
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func (c *chatServiceClient) Ask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ChatService_Ask_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) Analyse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ChatService_Analyse_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) ResetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ChatService_ResetSession_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatServiceServer is the server API for ChatService.
type ChatServiceServer interface {
	Ask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Analyse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedChatServiceServer answers every method with codes.Unimplemented.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Ask(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Ask not implemented")
}

func (UnimplementedChatServiceServer) Analyse(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Analyse not implemented")
}

func (UnimplementedChatServiceServer) ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ResetSession not implemented")
}

// RegisterChatServiceServer attaches srv to the registrar.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(ChatServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ask",
			Handler:    unaryHandler(ChatService_Ask_FullMethodName, ChatServiceServer.Ask),
		},
		{
			MethodName: "Analyse",
			Handler:    unaryHandler(ChatService_Analyse_FullMethodName, ChatServiceServer.Analyse),
		},
		{
			MethodName: "ResetSession",
			Handler:    unaryHandler(ChatService_ResetSession_FullMethodName, ChatServiceServer.ResetSession),
		},
	},
	Streams: []grpc.StreamDesc{},
}
