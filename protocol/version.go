// Package protocol defines the wire-level structures and constants shared by
// the grpcmcp client and server: protocol revisions, gRPC metadata keys, and
// the request/response envelopes carried over the transport.
package protocol

import "strings"

// Known MCP protocol revisions. Revisions are opaque, comparable tokens;
// equality is the only meaningful comparison.
const (
	Version20241105 = "2024-11-05"
	Version20250326 = "2025-03-26"
	Version20250618 = "2025-06-18"
)

// SupportedVersions lists every protocol revision this build understands, in
// order of preference (newest first).
var SupportedVersions = []string{
	Version20250618,
	Version20250326,
	Version20241105,
}

// LatestVersion is the revision a session offers optimistically before any
// negotiation has happened.
var LatestVersion = SupportedVersions[0]

// gRPC metadata keys. The protocol version key travels in both directions:
// request metadata (client to server) and response header metadata (server to
// client, on success and on version-mismatch aborts alike).
const (
	MetadataProtocolVersion = "mcp-protocol-version"
	MetadataToolName        = "mcp-tool-name"
	MetadataResourceURI     = "mcp-resource-uri"
)

// IsSupportedVersion reports whether v is a member of SupportedVersions.
func IsSupportedVersion(v string) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

// SupportedVersionList renders a version set as a human-readable list, used in
// mismatch status messages so the peer can log something actionable.
func SupportedVersionList(versions []string) string {
	return strings.Join(versions, ", ")
}
