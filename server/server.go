// Package server provides the grpcmcp server: an application handler registry
// wrapped in a protocol-version guard, TTL-stamped list responses, and a
// notification hub pushing resource events to watching clients.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

// Default TTL stamped on list responses.
const DefaultListTTL = 60 * time.Minute

// ToolHandler executes one tool call. Progress may be reported through the
// request; the returned result is streamed back to the caller.
type ToolHandler func(ctx context.Context, req *ToolRequest) (*protocol.CallToolResult, error)

// ResourceHandler produces the contents of one resource.
type ResourceHandler func(ctx context.Context, uri string) ([]protocol.ResourceContents, error)

// ToolRequest carries one tool invocation to its handler.
type ToolRequest struct {
	Name      string
	Arguments json.RawMessage

	progressToken string
	reportFn      func(protocol.Progress) error
}

// DecodeArguments unmarshals the call's JSON arguments into out.
func (r *ToolRequest) DecodeArguments(out interface{}) error {
	if len(r.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(r.Arguments, out)
}

// ReportProgress streams a progress update to the caller. It is a no-op when
// the caller attached no progress token.
func (r *ToolRequest) ReportProgress(progress, total float64, message string) error {
	if r.reportFn == nil || r.progressToken == "" {
		return nil
	}
	return r.reportFn(protocol.Progress{
		ProgressToken: r.progressToken,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}

type registeredTool struct {
	def     protocol.Tool
	handler ToolHandler
}

type registeredResource struct {
	def     protocol.Resource
	handler ResourceHandler
	ttl     time.Duration
}

// Server is the grpcmcp server. Registries may be mutated while serving;
// clients observe changes on their next call (or sooner, if the application
// publishes a change notification).
type Server struct {
	name              string
	logger            logx.Logger
	supportedVersions []string

	registryMu sync.RWMutex
	tools      map[string]*registeredTool
	resources  map[string]*registeredResource
	templates  []protocol.ResourceTemplate

	listToolsTTL     time.Duration
	listResourcesTTL time.Duration
	listTemplatesTTL time.Duration
	resourceTTL      time.Duration

	hub *hub

	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string
	grpcOpts    []grpc.ServerOption

	runMu      sync.Mutex
	grpcServer *grpc.Server
}

// NewServer creates a server with the given name.
func NewServer(name string, options ...Option) *Server {
	s := &Server{
		name:              name,
		logger:            logx.NewDefaultLogger(),
		supportedVersions: protocol.SupportedVersions,
		tools:             make(map[string]*registeredTool),
		resources:         make(map[string]*registeredResource),
		listToolsTTL:      DefaultListTTL,
		listResourcesTTL:  DefaultListTTL,
		listTemplatesTTL:  DefaultListTTL,
	}
	for _, option := range options {
		option(s)
	}
	s.hub = newHub(s.logger)
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithLogger provides an option to set a custom logger.
func WithLogger(logger logx.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSupportedVersions overrides the set of protocol versions this server
// accepts, in order of preference (newest first).
func WithSupportedVersions(versions []string) Option {
	return func(s *Server) {
		if len(versions) > 0 {
			s.supportedVersions = versions
		}
	}
}

// WithListTTL sets the TTL stamped on all three list responses.
func WithListTTL(d time.Duration) Option {
	return func(s *Server) {
		s.listToolsTTL = d
		s.listResourcesTTL = d
		s.listTemplatesTTL = d
	}
}

// WithResourceTTL sets the default TTL stamped on ReadResource responses.
// Zero leaves read responses unstamped unless the resource registration says
// otherwise.
func WithResourceTTL(d time.Duration) Option {
	return func(s *Server) {
		s.resourceTTL = d
	}
}

// WithTLS enables TLS with the provided certificate files.
func WithTLS(certFile, keyFile, caFile string) Option {
	return func(s *Server) {
		s.tlsCertFile = certFile
		s.tlsKeyFile = keyFile
		s.tlsCAFile = caFile
	}
}

// WithGRPCOptions appends raw grpc.ServerOptions.
func WithGRPCOptions(opts ...grpc.ServerOption) Option {
	return func(s *Server) {
		s.grpcOpts = append(s.grpcOpts, opts...)
	}
}

// ResourceOption configures one resource registration.
type ResourceOption func(*registeredResource)

// WithTTL sets the per-resource TTL stamped on reads of this resource,
// overriding the server default.
func WithTTL(d time.Duration) ResourceOption {
	return func(r *registeredResource) {
		r.ttl = d
	}
}

// RegisterTool registers a tool definition and its handler.
func (s *Server) RegisterTool(def protocol.Tool, handler ToolHandler) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	s.tools[def.Name] = &registeredTool{def: def, handler: handler}
}

// RegisterResource registers a resource definition and its handler.
func (s *Server) RegisterResource(def protocol.Resource, handler ResourceHandler, options ...ResourceOption) {
	r := &registeredResource{def: def, handler: handler, ttl: -1}
	for _, option := range options {
		option(r)
	}
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	s.resources[def.URI] = r
}

// RegisterResourceTemplate registers a resource template definition.
func (s *Server) RegisterResourceTemplate(def protocol.ResourceTemplate) {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	s.templates = append(s.templates, def)
}

// NotifyResourceChanged pushes a "changed" event for uri to every watching
// client.
func (s *Server) NotifyResourceChanged(uri string) {
	s.hub.publish(protocol.Notification{URI: uri, Reason: protocol.ReasonChanged})
}

// NotifyResourceExpired pushes an "expired" event for uri to every watching
// client.
func (s *Server) NotifyResourceExpired(uri string) {
	s.hub.publish(protocol.Notification{URI: uri, Reason: protocol.ReasonExpired})
}

// NotifyToolsChanged pushes a "changed" event for the tool list.
func (s *Server) NotifyToolsChanged() {
	s.hub.publish(protocol.Notification{URI: protocol.URIToolList, Reason: protocol.ReasonChanged})
}

// readTTL resolves the TTL for reads of r: the per-resource override if one
// was given, otherwise the server default.
func (s *Server) readTTL(r *registeredResource) time.Duration {
	if r.ttl >= 0 {
		return r.ttl
	}
	return s.resourceTTL
}

// expiryIn returns the expiry stamp for a response valid for ttl, or nil when
// ttl is zero.
func expiryIn(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}
