package llm

import (
	"encoding/json"
	"time"
)

// ChatResponse represents a complete (non-streamed) chat completion response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// Response timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The assistant's response message
	Message Message `json:"message"`

	// Whether generation is complete
	Done bool `json:"done"`

	// Normalized stop reason (see StopReason* constants)
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage and timing metrics
	Usage *Usage `json:"usage,omitempty"`

	// Provider-specific fields that don't map to common parameters
	Extra map[string]any `json:"extra,omitempty"`

	// RawResponse preserves the original response payload for debugging.
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Usage contains token counts and timing information.
type Usage struct {
	// Token counts
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Cache token counts (Anthropic prompt caching)
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`

	// Timing (provider-specific, but normalized to nanoseconds where possible)
	TotalDurationNs  int64 `json:"total_duration_ns,omitempty"`
	PromptDurationNs int64 `json:"prompt_duration_ns,omitempty"`
}

// Merge folds a later usage report into u. Non-zero fields of other win, and
// the total is recomputed when the provider did not report one.
func (u *Usage) Merge(other *Usage) {
	if other == nil {
		return
	}
	if other.PromptTokens != 0 {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens != 0 {
		u.CompletionTokens = other.CompletionTokens
	}
	if other.CacheCreationInputTokens != 0 {
		u.CacheCreationInputTokens = other.CacheCreationInputTokens
	}
	if other.CacheReadInputTokens != 0 {
		u.CacheReadInputTokens = other.CacheReadInputTokens
	}
	if other.TotalDurationNs != 0 {
		u.TotalDurationNs = other.TotalDurationNs
	}
	if other.PromptDurationNs != 0 {
		u.PromptDurationNs = other.PromptDurationNs
	}

	if other.TotalTokens != 0 {
		u.TotalTokens = other.TotalTokens
	} else {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
}
