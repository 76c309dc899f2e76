package gemini

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

// StreamError is an error envelope received as a stream element.
type StreamError struct {
	Body geminiErrorBody
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("gemini stream error: %d %s: %s", e.Body.Code, e.Body.Status, e.Body.Message)
}

// InspectError classifies Google API error envelopes
// ({"error":{"code","status","message"}}). It is shared by the dialects served
// from Google Cloud.
func InspectError(_ int, body []byte) (llm.ErrorKind, string, bool) {
	status := errmap.Code(body, "error.status", "0.error.status")
	msg := errmap.Message(body)
	if msg == "" {
		msg = errmap.Code(body, "0.error.message")
	}
	kind, ok := classify(status, msg)
	return kind, msg, ok
}

func classify(status, msg string) (llm.ErrorKind, bool) {
	switch strings.ToUpper(status) {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		// An invalid API key is reported as INVALID_ARGUMENT.
		if kind, ok := errmap.ClassifyMessage(msg); ok {
			return kind, true
		}
		if strings.EqualFold(status, "FAILED_PRECONDITION") {
			return llm.ErrorKindProviderBusiness, true
		}
		return llm.ErrorKindRequestMalformed, true
	case "":
		return errmap.ClassifyMessage(msg)
	default:
		return errmap.ClassifyCode(status)
	}
}

func (g *provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(errmap.ClassifyStatus(streamErr.Body.Code), provider, raw)
		e.Message = streamErr.Body.Message
		if kind, ok := classify(streamErr.Body.Status, streamErr.Body.Message); ok {
			e.Kind = kind
		}
		return e
	}
	return errmap.Map(raw, provider, InspectError)
}
