package llm

import "encoding/json"

// ChatRequest is the canonical outbound chat request. Dialect providers parse
// their native request bodies into it and encode it back into their own wire
// format before a request leaves the process.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o", "claude-sonnet-4-5", "llama3")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Whether to stream the response
	Stream *bool `json:"stream,omitempty"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Tools the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int     `json:"seed,omitempty"`

	// Provider-specific fields that don't map to common parameters
	Extra map[string]any `json:"extra,omitempty"`

	// RawRequest preserves the original request payload for cases where
	// parsing is incomplete or for debugging.
	RawRequest json.RawMessage `json:"raw_request,omitempty"`
}

// Tool describes a function the model may call. Parameters is a JSON schema
// object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// IsStreaming reports whether the request asks for a streamed response,
// falling back to def when the request leaves it unset.
func (r *ChatRequest) IsStreaming(def bool) bool {
	if r.Stream == nil {
		return def
	}
	return *r.Stream
}
