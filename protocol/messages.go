package protocol

import (
	"encoding/json"
	"time"
)

// --- Tooling structures ---

// ToolInputSchema defines the expected input structure for a tool (JSON Schema subset).
type ToolInputSchema struct {
	Type       string                    `json:"type"` // Typically "object"
	Properties map[string]PropertyDetail `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertyDetail describes a single parameter within a ToolInputSchema.
type PropertyDetail struct {
	Type        string        `json:"type"`
	Description string        `json:"description,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Format      string        `json:"format,omitempty"`
}

// Tool defines a tool offered by the server.
type Tool struct {
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	InputSchema  ToolInputSchema  `json:"inputSchema"`
	OutputSchema *ToolInputSchema `json:"outputSchema,omitempty"`
}

// --- Resource structures ---

// Resource represents a piece of context available from the server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a parameterized family of resources.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents holds one content item of a read resource. Exactly one of
// Text or Blob is set; Blob is base64 encoded.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// --- Request/response envelopes ---
//
// Every list-style response embeds an optional expiry timestamp. The client
// treats the listed data as stale once the timestamp passes; the exact cache
// policy lives on the client side.

// ListToolsRequest is the payload for the ListTools RPC.
type ListToolsRequest struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult is the payload for a successful ListTools response.
type ListToolsResult struct {
	Tools      []Tool     `json:"tools"`
	NextCursor string     `json:"nextCursor,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ListResourcesRequest is the payload for the ListResources RPC.
type ListResourcesRequest struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesResult is the payload for a successful ListResources response.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ListResourceTemplatesRequest is the payload for the ListResourceTemplates RPC.
type ListResourceTemplatesRequest struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourceTemplatesResult is the payload for a successful
// ListResourceTemplates response.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        string             `json:"nextCursor,omitempty"`
	ExpiresAt         *time.Time         `json:"expiresAt,omitempty"`
}

// ReadResourceRequest is the payload for the ReadResource RPC.
type ReadResourceRequest struct {
	URI string `json:"uri"`
}

// ReadResourceResult is the payload for a successful ReadResource response.
type ReadResourceResult struct {
	Contents  []ResourceContents `json:"contents"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// CallToolRequest is the payload opening the CallTool streaming RPC.
type CallToolRequest struct {
	Name          string          `json:"name"`
	Arguments     json.RawMessage `json:"arguments,omitempty"`
	ProgressToken string          `json:"progressToken,omitempty"`
}

// Progress reports partial completion of a long-running tool call.
type Progress struct {
	ProgressToken string  `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// CallToolResponse is one chunk of a CallTool response stream. A chunk carries
// either a progress update or a slice of the final result; the final chunk has
// Final set.
type CallToolResponse struct {
	Progress          *Progress       `json:"progress,omitempty"`
	Content           []Content       `json:"content,omitempty"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
	Final             bool            `json:"final,omitempty"`
}

// Content is one unstructured content item of a tool result.
type Content struct {
	Type string `json:"type"` // "text" or "blob"
	Text string `json:"text,omitempty"`
	Blob string `json:"blob,omitempty"` // base64 encoded
}

// CallToolResult is the assembled, final result of a tool call as surfaced to
// the application.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// PingRequest is the payload for the Ping RPC.
type PingRequest struct{}

// PingResult is the payload for a successful Ping response.
type PingResult struct{}
