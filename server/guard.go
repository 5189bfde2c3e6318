package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

// versionGuard enforces protocol version compatibility on every incoming
// call. It is composed once around the server's dispatch path as a pair of
// interceptors, so the behavior lives in one place no matter how many
// operations the service grows.
//
// The guard attaches a version header on both outcomes: the echoed version on
// success, the server's latest on rejection. The header on the rejection path
// is what lets a client converge in a single round trip.
type versionGuard struct {
	supported []string
	latest    string
	logger    logx.Logger
}

func newVersionGuard(supported []string, logger logx.Logger) *versionGuard {
	return &versionGuard{
		supported: supported,
		latest:    supported[0],
		logger:    logger,
	}
}

// check extracts and validates the version metadata entry from an incoming
// context. On failure it returns the Unimplemented status to abort with,
// whose message enumerates the supported set.
func (g *versionGuard) check(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(protocol.MetadataProtocolVersion)
	if len(vals) == 0 {
		return "", status.Errorf(codes.Unimplemented,
			"protocol version not provided; supported versions are: %s",
			protocol.SupportedVersionList(g.supported))
	}
	v := vals[0]
	for _, s := range g.supported {
		if s == v {
			return v, nil
		}
	}
	return v, status.Errorf(codes.Unimplemented,
		"unsupported protocol version: %q; supported versions are: %s",
		v, protocol.SupportedVersionList(g.supported))
}

// UnaryInterceptor returns the guard as a grpc.UnaryServerInterceptor.
func (g *versionGuard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		v, err := g.check(ctx)
		if err != nil {
			g.logger.Warn("rejecting %s: %v", info.FullMethod, err)
			// Header is sent even though the call aborts; the client reads the
			// server's preferred version from it.
			_ = grpc.SetHeader(ctx, metadata.Pairs(protocol.MetadataProtocolVersion, g.latest))
			return nil, err
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(protocol.MetadataProtocolVersion, v))
		return handler(ctx, req)
	}
}

// StreamInterceptor returns the guard as a grpc.StreamServerInterceptor.
func (g *versionGuard) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		v, err := g.check(ss.Context())
		if err != nil {
			g.logger.Warn("rejecting %s: %v", info.FullMethod, err)
			// SendHeader, not SetHeader: force the header onto the wire before
			// the stream aborts with the status.
			_ = ss.SendHeader(metadata.Pairs(protocol.MetadataProtocolVersion, g.latest))
			return err
		}
		if err := ss.SetHeader(metadata.Pairs(protocol.MetadataProtocolVersion, v)); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
