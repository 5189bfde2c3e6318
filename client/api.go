package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/localrivet/grpcmcp/protocol"
	transportgrpc "github.com/localrivet/grpcmcp/transport/grpc"
)

// ListTools sends a ListTools request. The result is cached until the expiry
// the server attached; cursored calls bypass the cache.
func (s *Session) ListTools(ctx context.Context, opts ...CallOption) (*protocol.ListToolsResult, error) {
	o := newCallOptions(opts)
	if o.cursor == "" {
		if cached, ok := s.toolsCache.get(); ok {
			return cached.(*protocol.ListToolsResult), nil
		}
	}
	resp := &protocol.ListToolsResult{}
	req := &protocol.ListToolsRequest{Cursor: o.cursor}
	if err := s.invoke(ctx, "ListTools", transportgrpc.MethodListTools, req, resp, nil, o); err != nil {
		return nil, err
	}
	if o.cursor == "" {
		s.toolsCache.set(resp, resp.ExpiresAt)
	}
	return resp, nil
}

// ListResources sends a ListResources request, cached like ListTools.
func (s *Session) ListResources(ctx context.Context, opts ...CallOption) (*protocol.ListResourcesResult, error) {
	o := newCallOptions(opts)
	if o.cursor == "" {
		if cached, ok := s.resourcesCache.get(); ok {
			return cached.(*protocol.ListResourcesResult), nil
		}
	}
	resp := &protocol.ListResourcesResult{}
	req := &protocol.ListResourcesRequest{Cursor: o.cursor}
	if err := s.invoke(ctx, "ListResources", transportgrpc.MethodListResources, req, resp, nil, o); err != nil {
		return nil, err
	}
	if o.cursor == "" {
		s.resourcesCache.set(resp, resp.ExpiresAt)
	}
	return resp, nil
}

// ListResourceTemplates sends a ListResourceTemplates request, cached like
// ListTools.
func (s *Session) ListResourceTemplates(ctx context.Context, opts ...CallOption) (*protocol.ListResourceTemplatesResult, error) {
	o := newCallOptions(opts)
	if o.cursor == "" {
		if cached, ok := s.templatesCache.get(); ok {
			return cached.(*protocol.ListResourceTemplatesResult), nil
		}
	}
	resp := &protocol.ListResourceTemplatesResult{}
	req := &protocol.ListResourceTemplatesRequest{Cursor: o.cursor}
	if err := s.invoke(ctx, "ListResourceTemplates", transportgrpc.MethodListResourceTemplates, req, resp, nil, o); err != nil {
		return nil, err
	}
	if o.cursor == "" {
		s.templatesCache.set(resp, resp.ExpiresAt)
	}
	return resp, nil
}

// ReadResource sends a ReadResource request. If the response carries an
// expiry, the session schedules exactly one "expired" notification for uri at
// that instant.
func (s *Session) ReadResource(ctx context.Context, uri string, opts ...CallOption) (*protocol.ReadResourceResult, error) {
	o := newCallOptions(opts)
	md := metadata.Pairs(protocol.MetadataResourceURI, uri)
	resp := &protocol.ReadResourceResult{}
	req := &protocol.ReadResourceRequest{URI: uri}
	operation := fmt.Sprintf("ReadResource(%s)", uri)
	if err := s.invoke(ctx, operation, transportgrpc.MethodReadResource, req, resp, md, o); err != nil {
		return nil, err
	}
	if resp.ExpiresAt != nil {
		s.scheduler.schedule(uri, *resp.ExpiresAt)
	}
	return resp, nil
}

// Ping sends a Ping request.
func (s *Session) Ping(ctx context.Context, opts ...CallOption) error {
	o := newCallOptions(opts)
	resp := &protocol.PingResult{}
	return s.invoke(ctx, "Ping", transportgrpc.MethodPing, &protocol.PingRequest{}, resp, nil, o)
}

// CallTool sends a tool call and assembles the response stream into a single
// result. Progress chunks go to the call's progress handler; the call is
// cancellable via ctx or CancelRequest with the returned request ID embedded
// in progress tokens.
//
// Like unary calls, a rejected first attempt with a usable mismatch signal is
// retried exactly once under the same deadline.
func (s *Session) CallTool(ctx context.Context, name string, args interface{}, opts ...CallOption) (*protocol.CallToolResult, error) {
	o := newCallOptions(opts)
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	operation := fmt.Sprintf("CallTool(%s)", name)

	argBytes, err := marshalArguments(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments for tool %q: %w", name, err)
	}

	ctx, stop := s.callContext(ctx)
	defer stop()
	ctx, cancel, err := s.deadlines.bind(ctx, operation, o.timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	requestID := uuid.NewString()
	s.trackCall(requestID, cancel)
	defer s.untrackCall(requestID)

	req := &protocol.CallToolRequest{
		Name:          name,
		Arguments:     argBytes,
		ProgressToken: requestID,
	}

	var callErr error
	var header metadata.MD
	for attempt := 1; attempt <= 2; attempt++ {
		header = metadata.MD{}
		md := metadata.MD{}
		md.Set(protocol.MetadataToolName, name)
		md.Set(protocol.MetadataProtocolVersion, s.negotiator.current())

		stream, err := s.channel.OpenStream(ctx, &transportgrpc.CallToolStreamDesc, transportgrpc.MethodCallTool, req, md)
		if err != nil {
			callErr = err
		} else {
			var result *protocol.CallToolResult
			result, callErr = s.consumeToolStream(stream, o.progress)
			if callErr == nil {
				return result, nil
			}
			if h, herr := stream.Header(); herr == nil {
				header = h
			}
		}
		if attempt == 1 && s.negotiator.checkAndUpdate(callErr, header) {
			continue
		}
		break
	}
	if mm := mismatchError(callErr, header); mm != nil {
		return nil, mm
	}
	return nil, s.mapError(operation, callErr, o)
}

// consumeToolStream drains a CallTool response stream, dispatching progress
// chunks and accumulating the result.
func (s *Session) consumeToolStream(stream grpc.ClientStream, progress ProgressHandler) (*protocol.CallToolResult, error) {
	result := &protocol.CallToolResult{}
	for {
		var chunk protocol.CallToolResponse
		if err := stream.RecvMsg(&chunk); err != nil {
			if err == io.EOF {
				return result, nil
			}
			return nil, err
		}
		if chunk.Progress != nil {
			if progress != nil {
				progress(*chunk.Progress)
			}
			continue
		}
		result.Content = append(result.Content, chunk.Content...)
		if len(chunk.StructuredContent) > 0 {
			result.StructuredContent = chunk.StructuredContent
		}
		result.IsError = result.IsError || chunk.IsError
	}
}

func (s *Session) trackCall(requestID string, cancel context.CancelFunc) {
	s.runningMu.Lock()
	s.runningCalls[requestID] = cancel
	s.runningMu.Unlock()
}

func (s *Session) untrackCall(requestID string) {
	s.runningMu.Lock()
	delete(s.runningCalls, requestID)
	s.runningMu.Unlock()
}

func marshalArguments(args interface{}) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(args)
	}
}

// DecodeStructuredContent decodes a tool result's structured content into
// out, honoring json field tags.
func DecodeStructuredContent(result *protocol.CallToolResult, out interface{}) error {
	if result == nil || len(result.StructuredContent) == 0 {
		return fmt.Errorf("tool result has no structured content")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(result.StructuredContent, &raw); err != nil {
		return fmt.Errorf("failed to parse structured content: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
