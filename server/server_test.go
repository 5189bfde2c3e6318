package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

func newTestServer(opts ...Option) (*Server, *mcpService) {
	s := NewServer("test", append([]Option{WithLogger(logx.NewNopLogger())}, opts...)...)
	return s, &mcpService{server: s}
}

// fakeToolStream collects the chunks a CallTool handler sends.
type fakeToolStream struct {
	mu     sync.Mutex
	chunks []*protocol.CallToolResponse
}

func (f *fakeToolStream) Send(m *protocol.CallToolResponse) error {
	f.mu.Lock()
	f.chunks = append(f.chunks, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeToolStream) Context() context.Context { return context.Background() }

func TestListToolsSortedWithTTLStamp(t *testing.T) {
	s, svc := newTestServer(WithListTTL(time.Minute))
	s.RegisterTool(protocol.Tool{Name: "zeta"}, nil)
	s.RegisterTool(protocol.Tool{Name: "alpha"}, nil)

	result, err := svc.ListTools(context.Background(), &protocol.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, result.Tools, 2)
	assert.Equal(t, "alpha", result.Tools[0].Name)
	assert.Equal(t, "zeta", result.Tools[1].Name)

	require.NotNil(t, result.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *result.ExpiresAt, 5*time.Second)
}

func TestListTTLZeroLeavesResponseUnstamped(t *testing.T) {
	_, svc := newTestServer(WithListTTL(0))

	result, err := svc.ListTools(context.Background(), &protocol.ListToolsRequest{})
	require.NoError(t, err)
	assert.Nil(t, result.ExpiresAt)
}

func TestListResourcesAndTemplates(t *testing.T) {
	s, svc := newTestServer()
	s.RegisterResource(protocol.Resource{URI: "file:///b"}, nil)
	s.RegisterResource(protocol.Resource{URI: "file:///a"}, nil)
	s.RegisterResourceTemplate(protocol.ResourceTemplate{URITemplate: "file:///{name}"})

	resources, err := svc.ListResources(context.Background(), &protocol.ListResourcesRequest{})
	require.NoError(t, err)
	require.Len(t, resources.Resources, 2)
	assert.Equal(t, "file:///a", resources.Resources[0].URI)

	templates, err := svc.ListResourceTemplates(context.Background(), &protocol.ListResourceTemplatesRequest{})
	require.NoError(t, err)
	require.Len(t, templates.ResourceTemplates, 1)
}

func TestReadResource(t *testing.T) {
	s, svc := newTestServer(WithResourceTTL(time.Minute))
	s.RegisterResource(protocol.Resource{URI: "file:///motd"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return []protocol.ResourceContents{{URI: uri, Text: "welcome"}}, nil
		})

	result, err := svc.ReadResource(context.Background(), &protocol.ReadResourceRequest{URI: "file:///motd"})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "welcome", result.Contents[0].Text)
	require.NotNil(t, result.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *result.ExpiresAt, 5*time.Second)
}

func TestReadResourcePerResourceTTLOverridesDefault(t *testing.T) {
	s, svc := newTestServer(WithResourceTTL(time.Minute))
	s.RegisterResource(protocol.Resource{URI: "file:///short"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return []protocol.ResourceContents{{URI: uri}}, nil
		}, WithTTL(time.Second))
	s.RegisterResource(protocol.Resource{URI: "file:///never"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return []protocol.ResourceContents{{URI: uri}}, nil
		}, WithTTL(0))

	short, err := svc.ReadResource(context.Background(), &protocol.ReadResourceRequest{URI: "file:///short"})
	require.NoError(t, err)
	require.NotNil(t, short.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Second), *short.ExpiresAt, 5*time.Second)

	never, err := svc.ReadResource(context.Background(), &protocol.ReadResourceRequest{URI: "file:///never"})
	require.NoError(t, err)
	assert.Nil(t, never.ExpiresAt)
}

func TestReadResourceUnknownURIIsNotFound(t *testing.T) {
	_, svc := newTestServer()

	_, err := svc.ReadResource(context.Background(), &protocol.ReadResourceRequest{URI: "file:///missing"})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestReadResourceHandlerErrorIsInternal(t *testing.T) {
	s, svc := newTestServer()
	s.RegisterResource(protocol.Resource{URI: "file:///broken"},
		func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
			return nil, errors.New("disk on fire")
		})

	_, err := svc.ReadResource(context.Background(), &protocol.ReadResourceRequest{URI: "file:///broken"})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestCallToolStreamsProgressThenFinal(t *testing.T) {
	s, svc := newTestServer()
	s.RegisterTool(protocol.Tool{Name: "steps"}, func(ctx context.Context, req *ToolRequest) (*protocol.CallToolResult, error) {
		require.NoError(t, req.ReportProgress(1, 2, "halfway"))
		return &protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: "done"}}}, nil
	})

	stream := &fakeToolStream{}
	err := svc.CallTool(&protocol.CallToolRequest{Name: "steps", ProgressToken: "req-1"}, stream)
	require.NoError(t, err)
	require.Len(t, stream.chunks, 2)

	require.NotNil(t, stream.chunks[0].Progress)
	assert.Equal(t, "req-1", stream.chunks[0].Progress.ProgressToken)
	assert.False(t, stream.chunks[0].Final)

	final := stream.chunks[1]
	assert.True(t, final.Final)
	assert.False(t, final.IsError)
	assert.Equal(t, "done", final.Content[0].Text)
}

func TestCallToolWithoutProgressTokenSkipsProgress(t *testing.T) {
	s, svc := newTestServer()
	s.RegisterTool(protocol.Tool{Name: "quiet"}, func(ctx context.Context, req *ToolRequest) (*protocol.CallToolResult, error) {
		require.NoError(t, req.ReportProgress(1, 2, "invisible"))
		return &protocol.CallToolResult{}, nil
	})

	stream := &fakeToolStream{}
	require.NoError(t, svc.CallTool(&protocol.CallToolRequest{Name: "quiet"}, stream))
	require.Len(t, stream.chunks, 1)
	assert.True(t, stream.chunks[0].Final)
}

func TestCallToolUnknownToolIsInBandError(t *testing.T) {
	_, svc := newTestServer()

	stream := &fakeToolStream{}
	require.NoError(t, svc.CallTool(&protocol.CallToolRequest{Name: "ghost"}, stream))
	require.Len(t, stream.chunks, 1)
	assert.True(t, stream.chunks[0].IsError)
	assert.True(t, stream.chunks[0].Final)
	assert.Contains(t, stream.chunks[0].Content[0].Text, "ghost")
}

func TestCallToolHandlerErrorIsInBandError(t *testing.T) {
	s, svc := newTestServer()
	s.RegisterTool(protocol.Tool{Name: "broken"}, func(ctx context.Context, req *ToolRequest) (*protocol.CallToolResult, error) {
		return nil, errors.New("tool exploded")
	})

	stream := &fakeToolStream{}
	require.NoError(t, svc.CallTool(&protocol.CallToolRequest{Name: "broken"}, stream))
	require.Len(t, stream.chunks, 1)
	assert.True(t, stream.chunks[0].IsError)
	assert.Contains(t, stream.chunks[0].Content[0].Text, "tool exploded")
}

func TestToolRequestDecodeArguments(t *testing.T) {
	req := &ToolRequest{Name: "echo", Arguments: []byte(`{"message": "hi"}`)}

	var args struct {
		Message string `json:"message"`
	}
	require.NoError(t, req.DecodeArguments(&args))
	assert.Equal(t, "hi", args.Message)

	empty := &ToolRequest{Name: "echo"}
	require.NoError(t, empty.DecodeArguments(&args))
}

func TestServeAgainAfterShutdownAcceptsWatchSubscribers(t *testing.T) {
	s, _ := newTestServer()

	serve := func() chan error {
		lis := bufconn.Listen(1 << 16)
		done := make(chan error, 1)
		go func() { done <- s.ServeListener(lis) }()
		require.Eventually(t, func() bool {
			s.runMu.Lock()
			defer s.runMu.Unlock()
			return s.grpcServer != nil
		}, time.Second, time.Millisecond)
		return done
	}

	done := serve()
	s.Shutdown()
	require.NoError(t, <-done)

	serve()
	t.Cleanup(s.Shutdown)

	_, sub := s.hub.subscribe()
	select {
	case <-sub.done:
		t.Fatal("subscriber born detached after restart")
	default:
	}

	s.NotifyResourceChanged("file:///again")
	select {
	case n := <-sub.ch:
		assert.Equal(t, "file:///again", n.URI)
	case <-time.After(time.Second):
		t.Fatal("no delivery after restart")
	}
}

func TestPing(t *testing.T) {
	_, svc := newTestServer()
	result, err := svc.Ping(context.Background(), &protocol.PingRequest{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}
