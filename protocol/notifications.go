package protocol

// Notification reason codes.
const (
	ReasonExpired = "expired"
	ReasonChanged = "changed"
)

// Well-known URIs for list-level events. Individual resources use their own
// URI.
const (
	URIToolList             = "mcp:tools"
	URIResourceList         = "mcp:resources"
	URIResourceTemplateList = "mcp:resource-templates"
)

// Notification is one out-of-band event pushed on the Watch stream, or raised
// locally by the client when a cached resource's TTL elapses. URI identifies
// the affected resource; Reason is one of the Reason* constants.
type Notification struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// WatchRequest opens the Watch notification stream.
type WatchRequest struct{}
