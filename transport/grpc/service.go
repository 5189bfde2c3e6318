package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/localrivet/grpcmcp/protocol"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "mcp.Mcp"

// Fully-qualified method names, usable with Channel.UnaryCall and in
// interceptor info.
const (
	MethodListTools             = "/" + ServiceName + "/ListTools"
	MethodListResources         = "/" + ServiceName + "/ListResources"
	MethodListResourceTemplates = "/" + ServiceName + "/ListResourceTemplates"
	MethodReadResource          = "/" + ServiceName + "/ReadResource"
	MethodPing                  = "/" + ServiceName + "/Ping"
	MethodCallTool              = "/" + ServiceName + "/CallTool"
	MethodWatch                 = "/" + ServiceName + "/Watch"
)

// McpService is the server-side contract of the Mcp gRPC service.
type McpService interface {
	ListTools(ctx context.Context, req *protocol.ListToolsRequest) (*protocol.ListToolsResult, error)
	ListResources(ctx context.Context, req *protocol.ListResourcesRequest) (*protocol.ListResourcesResult, error)
	ListResourceTemplates(ctx context.Context, req *protocol.ListResourceTemplatesRequest) (*protocol.ListResourceTemplatesResult, error)
	ReadResource(ctx context.Context, req *protocol.ReadResourceRequest) (*protocol.ReadResourceResult, error)
	Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResult, error)
	CallTool(req *protocol.CallToolRequest, stream CallToolStream) error
	Watch(req *protocol.WatchRequest, stream WatchStream) error
}

// CallToolStream is the server-side send stream for the CallTool RPC.
type CallToolStream interface {
	Send(*protocol.CallToolResponse) error
	Context() context.Context
}

// WatchStream is the server-side send stream for the Watch RPC.
type WatchStream interface {
	Send(*protocol.Notification) error
	Context() context.Context
}

// RegisterMcpService registers the Mcp service implementation with a gRPC
// server. The service descriptor is assembled by hand because message payloads
// travel through the JSON codec rather than generated protobuf types.
func RegisterMcpService(s grpc.ServiceRegistrar, srv McpService) {
	s.RegisterService(&McpServiceDesc, srv)
}

// McpServiceDesc is the grpc.ServiceDesc for the Mcp service.
var McpServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*McpService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTools", Handler: listToolsHandler},
		{MethodName: "ListResources", Handler: listResourcesHandler},
		{MethodName: "ListResourceTemplates", Handler: listResourceTemplatesHandler},
		{MethodName: "ReadResource", Handler: readResourceHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "CallTool", Handler: callToolHandler, ServerStreams: true},
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}

// Client-side stream descriptors for Channel.OpenStream.
var (
	CallToolStreamDesc = grpc.StreamDesc{StreamName: "CallTool", ServerStreams: true}
	WatchStreamDesc    = grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
)

func listToolsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.ListToolsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(McpService).ListTools(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListTools}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(McpService).ListTools(ctx, req.(*protocol.ListToolsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listResourcesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.ListResourcesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(McpService).ListResources(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListResources}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(McpService).ListResources(ctx, req.(*protocol.ListResourcesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listResourceTemplatesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.ListResourceTemplatesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(McpService).ListResourceTemplates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListResourceTemplates}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(McpService).ListResourceTemplates(ctx, req.(*protocol.ListResourceTemplatesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readResourceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.ReadResourceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(McpService).ReadResource(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReadResource}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(McpService).ReadResource(ctx, req.(*protocol.ReadResourceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(protocol.PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(McpService).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPing}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(McpService).Ping(ctx, req.(*protocol.PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func callToolHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(protocol.CallToolRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(McpService).CallTool(in, &callToolStream{stream})
}

type callToolStream struct {
	grpc.ServerStream
}

func (s *callToolStream) Send(m *protocol.CallToolResponse) error {
	return s.SendMsg(m)
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(protocol.WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(McpService).Watch(in, &watchStream{stream})
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(m *protocol.Notification) error {
	return s.SendMsg(m)
}
