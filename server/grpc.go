package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/localrivet/grpcmcp/protocol"
	transportgrpc "github.com/localrivet/grpcmcp/transport/grpc"
)

// ErrAlreadyServing is returned by Serve when the server is already running.
var ErrAlreadyServing = errors.New("server is already serving")

// Serve listens on address and serves until Shutdown.
func (s *Server) Serve(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener until Shutdown. Tests use it
// with bufconn.
func (s *Server) ServeListener(lis net.Listener) error {
	s.runMu.Lock()
	if s.grpcServer != nil {
		s.runMu.Unlock()
		return ErrAlreadyServing
	}
	opts, err := s.serverOptions()
	if err != nil {
		s.runMu.Unlock()
		return err
	}
	grpcServer := grpc.NewServer(opts...)
	transportgrpc.RegisterMcpService(grpcServer, &mcpService{server: s})
	s.grpcServer = grpcServer
	s.runMu.Unlock()

	s.logger.Info("server %s listening on %s", s.name, lis.Addr())
	return grpcServer.Serve(lis)
}

// Shutdown stops the server gracefully and detaches all Watch streams. Safe
// to call when not serving.
func (s *Server) Shutdown() {
	s.runMu.Lock()
	grpcServer := s.grpcServer
	s.grpcServer = nil
	s.runMu.Unlock()
	if grpcServer == nil {
		return
	}
	s.hub.close()
	grpcServer.GracefulStop()
	// Re-arm the hub so a later Serve accepts Watch subscribers again.
	s.hub.reopen()
	s.logger.Info("server %s stopped", s.name)
}

// serverOptions assembles interceptors and credentials. The version guard is
// installed once here, around the whole dispatch path.
func (s *Server) serverOptions() ([]grpc.ServerOption, error) {
	guard := newVersionGuard(s.supportedVersions, s.logger)
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(guard.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(guard.StreamInterceptor()),
	}
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		creds, err := transportgrpc.ServerTLSCredentials(s.tlsCertFile, s.tlsKeyFile, s.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	opts = append(opts, s.grpcOpts...)
	return opts, nil
}

// mcpService adapts the registry to the Mcp gRPC service surface.
type mcpService struct {
	server *Server
}

var _ transportgrpc.McpService = (*mcpService)(nil)

func (m *mcpService) ListTools(ctx context.Context, req *protocol.ListToolsRequest) (*protocol.ListToolsResult, error) {
	s := m.server
	s.registryMu.RLock()
	tools := make([]protocol.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.def)
	}
	s.registryMu.RUnlock()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	return &protocol.ListToolsResult{
		Tools:     tools,
		ExpiresAt: expiryIn(s.listToolsTTL),
	}, nil
}

func (m *mcpService) ListResources(ctx context.Context, req *protocol.ListResourcesRequest) (*protocol.ListResourcesResult, error) {
	s := m.server
	s.registryMu.RLock()
	resources := make([]protocol.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, r.def)
	}
	s.registryMu.RUnlock()
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })

	return &protocol.ListResourcesResult{
		Resources: resources,
		ExpiresAt: expiryIn(s.listResourcesTTL),
	}, nil
}

func (m *mcpService) ListResourceTemplates(ctx context.Context, req *protocol.ListResourceTemplatesRequest) (*protocol.ListResourceTemplatesResult, error) {
	s := m.server
	s.registryMu.RLock()
	templates := make([]protocol.ResourceTemplate, len(s.templates))
	copy(templates, s.templates)
	s.registryMu.RUnlock()

	return &protocol.ListResourceTemplatesResult{
		ResourceTemplates: templates,
		ExpiresAt:         expiryIn(s.listTemplatesTTL),
	}, nil
}

func (m *mcpService) ReadResource(ctx context.Context, req *protocol.ReadResourceRequest) (*protocol.ReadResourceResult, error) {
	s := m.server
	s.registryMu.RLock()
	r, ok := s.resources[req.URI]
	s.registryMu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "resource %s not found", req.URI)
	}

	contents, err := r.handler(ctx, req.URI)
	if err != nil {
		s.logger.Error("error reading resource %s: %v", req.URI, err)
		return nil, status.Errorf(codes.Internal, "failed to read resource %s: %v", req.URI, err)
	}

	return &protocol.ReadResourceResult{
		Contents:  contents,
		ExpiresAt: expiryIn(s.readTTL(r)),
	}, nil
}

func (m *mcpService) Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResult, error) {
	return &protocol.PingResult{}, nil
}

func (m *mcpService) CallTool(req *protocol.CallToolRequest, stream transportgrpc.CallToolStream) error {
	s := m.server
	s.registryMu.RLock()
	tool, ok := s.tools[req.Name]
	s.registryMu.RUnlock()
	if !ok {
		// Unknown tool is an in-band error result, not an RPC failure; the
		// call itself was well-formed.
		return sendErrorResult(stream, fmt.Sprintf("tool %q not found", req.Name))
	}

	toolReq := &ToolRequest{
		Name:          req.Name,
		Arguments:     req.Arguments,
		progressToken: req.ProgressToken,
		reportFn: func(p protocol.Progress) error {
			return stream.Send(&protocol.CallToolResponse{Progress: &p})
		},
	}

	result, err := tool.handler(stream.Context(), toolReq)
	if err != nil {
		s.logger.Error("error executing tool %q: %v", req.Name, err)
		return sendErrorResult(stream, fmt.Sprintf("error executing tool %s: %v", req.Name, err))
	}
	if result == nil {
		result = &protocol.CallToolResult{}
	}

	return stream.Send(&protocol.CallToolResponse{
		Content:           result.Content,
		StructuredContent: result.StructuredContent,
		IsError:           result.IsError,
		Final:             true,
	})
}

func sendErrorResult(stream transportgrpc.CallToolStream, message string) error {
	return stream.Send(&protocol.CallToolResponse{
		Content: []protocol.Content{{Type: "text", Text: message}},
		IsError: true,
		Final:   true,
	})
}

func (m *mcpService) Watch(req *protocol.WatchRequest, stream transportgrpc.WatchStream) error {
	s := m.server
	id, sub := s.hub.subscribe()
	defer s.hub.unsubscribe(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.done:
			return nil
		case n := <-sub.ch:
			if err := stream.Send(&n); err != nil {
				return err
			}
		}
	}
}
