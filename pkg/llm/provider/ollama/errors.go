package ollama

import (
	"errors"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

// StreamError is an {"error": "..."} line received mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "ollama stream error: " + e.Message
}

// inspect classifies Ollama's {"error": "..."} bodies, which carry no code.
func inspect(_ int, body []byte) (llm.ErrorKind, string, bool) {
	msg := errmap.Message(body)
	kind, ok := classify(msg)
	return kind, msg, ok
}

func classify(msg string) (llm.ErrorKind, bool) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		return llm.ErrorKindModelNotFound, true
	case strings.Contains(lower, "does not support"):
		return llm.ErrorKindRequestMalformed, true
	case strings.Contains(lower, "requires more system memory"),
		strings.Contains(lower, "server busy"):
		return llm.ErrorKindProviderUnavailable, true
	default:
		return errmap.ClassifyMessage(msg)
	}
}

func (o *provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		e.Message = streamErr.Message
		if kind, ok := classify(streamErr.Message); ok {
			e.Kind = kind
		}
		return e
	}
	return errmap.Map(raw, provider, inspect)
}
