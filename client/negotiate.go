package client

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

// unaryCaller is the slice of the channel surface the negotiator needs.
type unaryCaller interface {
	UnaryCall(ctx context.Context, method string, req, resp interface{}, md metadata.MD, header *metadata.MD) error
}

// negotiator holds the session's negotiated protocol version and drives the
// bounded retry loop for version agreement.
//
// The version slot is written only from checkAndUpdate. Concurrent calls that
// each observe a mismatch before the first negotiation lands all write the
// version the server reported, so last-write-wins converges. Calls already in
// flight keep the version they were sent with.
type negotiator struct {
	version atomic.Value // string
	logger  logx.Logger
}

func newNegotiator(logger logx.Logger) *negotiator {
	n := &negotiator{logger: logger}
	n.version.Store(protocol.LatestVersion)
	return n
}

// current returns the version the session currently believes is mutually
// acceptable.
func (n *negotiator) current() string {
	return n.version.Load().(string)
}

// attach returns a copy of md carrying exactly one protocol version entry.
func (n *negotiator) attach(md metadata.MD) metadata.MD {
	out := md.Copy()
	if out == nil {
		out = metadata.MD{}
	}
	out.Set(protocol.MetadataProtocolVersion, n.current())
	return out
}

// checkAndUpdate inspects a failed call for a version mismatch signal. It
// returns true when the server's header carried a version this client
// supports: the negotiated version has been updated and the call should be
// retried once.
func (n *negotiator) checkAndUpdate(err error, header metadata.MD) bool {
	if status.Code(err) != codes.Unimplemented {
		return false
	}
	vals := header.Get(protocol.MetadataProtocolVersion)
	if len(vals) == 0 {
		n.logger.Warn("server rejected protocol version but returned no %q header", protocol.MetadataProtocolVersion)
		return false
	}
	serverVersion := vals[0]
	if !protocol.IsSupportedVersion(serverVersion) {
		n.logger.Warn("server protocol version %q is not supported by this client", serverVersion)
		return false
	}
	n.logger.Info("negotiating protocol version down to %s, retrying", serverVersion)
	n.version.Store(serverVersion)
	return true
}

// unary sends one invocation with the current negotiated version attached,
// retrying exactly once if the server signals a usable mismatch. The retry
// reuses ctx, so the original deadline bounds both attempts.
func (n *negotiator) unary(ctx context.Context, ch unaryCaller, method string, req, resp interface{}, md metadata.MD) error {
	var err error
	var header metadata.MD
	for attempt := 1; attempt <= 2; attempt++ {
		header = metadata.MD{}
		err = ch.UnaryCall(ctx, method, req, resp, n.attach(md), &header)
		if err == nil {
			return nil
		}
		if attempt == 1 && n.checkAndUpdate(err, header) {
			continue
		}
		break
	}
	// A terminal Unimplemented means negotiation is exhausted: either the
	// retry was rejected too, or the first rejection carried no usable
	// version.
	if mm := mismatchError(err, header); mm != nil {
		return mm
	}
	return err
}

// mismatchError converts a terminal Unimplemented status into the
// session-fatal negotiation error, preserving the server's enumerated
// versions from the status message.
func mismatchError(err error, header metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unimplemented {
		return nil
	}
	serverVersion := ""
	if vals := header.Get(protocol.MetadataProtocolVersion); len(vals) > 0 {
		serverVersion = vals[0]
	}
	return &VersionMismatchError{
		ServerVersion: serverVersion,
		Supported:     st.Message(),
		Cause:         err,
	}
}
