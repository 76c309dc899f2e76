package bedrock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

// StreamError is an exception message received on the response stream.
type StreamError struct {
	Type    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("bedrock %s: %s", e.Type, e.Message)
}

// exceptionName reduces the forms AWS uses for error types
// ("ThrottlingException", "com.amazon.coral#ThrottlingException",
// "ThrottlingException:http://internal.amazon.com/...") to a lower-case name.
func exceptionName(code string) string {
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(strings.TrimSpace(code))
}

func classify(code, msg string) (llm.ErrorKind, bool) {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "security token included in the request is invalid") ||
		strings.Contains(lower, "signature we calculated does not match") {
		return llm.ErrorKindInvalidCredentials, true
	}

	switch exceptionName(code) {
	case "validationexception":
		if kind, ok := errmap.ClassifyMessage(msg); ok {
			return kind, true
		}
		return llm.ErrorKindRequestMalformed, true
	case "modelstreamerrorexception":
		return llm.ErrorKindProviderUnavailable, true
	case "modelerrorexception":
		return llm.ErrorKindProviderBusiness, true
	case "":
		return "", false
	default:
		return errmap.ClassifyCode(exceptionName(code))
	}
}

// inspect classifies {"message": ...} bodies, optionally typed by __type.
func inspect(_ int, body []byte) (llm.ErrorKind, string, bool) {
	msg := errmap.Message(body)
	kind, ok := classify(errmap.Code(body, "__type", "code", "Code"), msg)
	return kind, msg, ok
}

// MapError classifies HTTP failures, stream exceptions and Messages API error
// events relayed through the stream.
func (p *Provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		e.Message = streamErr.Message
		if kind, ok := classify(streamErr.Type, streamErr.Message); ok {
			e.Kind = kind
		}
		return e
	}

	var eventErr *anthropic.StreamError
	if errors.As(raw, &eventErr) {
		return anthropic.MapError(raw, provider)
	}

	return errmap.Map(raw, provider, inspect)
}
