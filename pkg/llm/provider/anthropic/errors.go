package anthropic

import (
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

// StreamError is an "error" event received in the middle of a stream.
type StreamError struct {
	Body anthropicErrorBody
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("anthropic stream error: %s: %s", e.Body.Type, e.Body.Message)
}

// InspectError classifies {"type":"error","error":{"type","message"}} bodies.
// invalid_request_error is refined by message since it covers both malformed
// requests and oversized prompts.
func InspectError(_ int, body []byte) (llm.ErrorKind, string, bool) {
	typ := errmap.Code(body, "error.type")
	return classify(typ, errmap.Message(body))
}

func classify(typ, message string) (llm.ErrorKind, string, bool) {
	if typ == "invalid_request_error" {
		if kind, ok := errmap.ClassifyMessage(message); ok {
			return kind, message, true
		}
		return llm.ErrorKindRequestMalformed, message, true
	}
	if kind, ok := errmap.ClassifyCode(typ); ok {
		return kind, message, true
	}
	return "", "", false
}

// MapError classifies HTTP error bodies, in-band stream errors and errors
// returned by the anthropic-sdk-go client.
func (p *provider) MapError(raw error, provider string) *llm.Error {
	return MapError(raw, provider)
}

// MapError is the Anthropic error mapper, shared with the dialects that wrap
// the Messages API.
func MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		e.Message = streamErr.Body.Message
		if kind, _, ok := classify(streamErr.Body.Type, streamErr.Body.Message); ok {
			e.Kind = kind
		}
		return e
	}

	var apiErr *sdk.Error
	if errors.As(raw, &apiErr) {
		e := errmap.FromHTTP(raw, apiErr.StatusCode, nil, provider, nil)
		if kind, ok := errmap.ClassifyMessage(apiErr.Error()); ok && e.Kind == llm.ErrorKindRequestMalformed {
			e.Kind = kind
		}
		return e
	}

	return errmap.Map(raw, provider, InspectError)
}
