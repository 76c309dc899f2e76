// Package provider defines the dialect capability every LLM wire format
// implements and the registry that maps dialect names to implementations.
package provider

import (
	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// Provider is one dialect: a wire format for requests, responses and streamed
// chunks, plus the rules for classifying its failures.
type Provider interface {
	// Name returns the dialect name (e.g., "anthropic", "openai", "ollama", "besteffort")
	Name() string

	// CanHandle returns true if the payload appears to be for this dialect.
	// Implementations should check for dialect-specific markers in the JSON
	// such as field names, model name patterns, or response structure.
	CanHandle(payload []byte) bool

	// DefaultStreaming reports whether requests stream when they do not say.
	DefaultStreaming() bool

	// ParseRequest converts a dialect request body into the canonical request.
	ParseRequest(payload []byte) (*llm.ChatRequest, error)

	// EncodeRequest renders a canonical request as this dialect's request body.
	// Content parts the dialect cannot express are dropped.
	EncodeRequest(req *llm.ChatRequest) ([]byte, error)

	// ParseResponse converts a complete (non-streamed) response body.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)

	// ParseStreamChunk transforms one raw stream element into zero or more
	// canonical chunks, mutating only sc. A nil result means the element
	// carried nothing observable (keep-alives, pings). Returned errors become
	// the terminal error chunk of the stream.
	ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error)

	// MapError classifies a raw failure. It never fails: unknown errors map to
	// llm.ErrorKindProviderBusiness.
	MapError(raw error, provider string) *llm.Error
}
