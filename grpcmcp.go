// Package grpcmcp carries the Model Context Protocol (MCP) over gRPC.
//
// # Overview
//
// The Model Context Protocol (MCP) is a standardized communication protocol
// designed to facilitate interaction between applications and Large Language
// Models (LLMs). This library runs MCP over a gRPC channel: a client session
// negotiates a protocol revision with the server on every call, binds
// per-call deadlines, and receives asynchronous resource notifications over a
// long-lived server stream.
//
// # Core Features
//
// - Automatic protocol version negotiation with a single bounded retry
// - Per-call deadlines with a session-wide default and per-call overrides
// - Cooperative cancellation via context or request ID
// - Server-pushed change notifications and client-local TTL expiry events
// - Streaming tool calls with progress reporting
// - TTL-stamped list responses with client-side caching
//
// # Organization
//
// The library is organized into the following main packages:
//
//   - github.com/localrivet/grpcmcp/client: the client session
//   - github.com/localrivet/grpcmcp/server: the server registry and service
//   - github.com/localrivet/grpcmcp/protocol: protocol revisions and payloads
//   - github.com/localrivet/grpcmcp/transport/grpc: the gRPC channel
//
// # Getting Started
//
// Create a server, register a tool, and serve:
//
//	srv := server.NewServer("example")
//	srv.RegisterTool(protocol.Tool{Name: "echo"}, func(ctx context.Context, req *server.ToolRequest) (*protocol.CallToolResult, error) {
//		var args struct {
//			Message string `json:"message"`
//		}
//		if err := req.DecodeArguments(&args); err != nil {
//			return nil, err
//		}
//		return &protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: args.Message}}}, nil
//	})
//	log.Fatal(srv.Serve("localhost:9100"))
//
// Connect a session and call it:
//
//	session, err := client.NewSession("localhost:9100", client.WithDefaultTimeout(30*time.Second))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//	result, err := session.CallTool(ctx, "echo", map[string]string{"message": "hi"})
package grpcmcp

// Version is the current version of the grpcmcp library.
const Version = "0.1.0"
