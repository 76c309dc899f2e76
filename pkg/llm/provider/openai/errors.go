package openai

import (
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

// StreamError is an error frame received in the middle of a stream.
type StreamError struct {
	Body openaiErrorBody
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("openai stream error: %s", e.Body.Message)
}

func (e *StreamError) code() string {
	if e.Body.Code == nil {
		return ""
	}
	return fmt.Sprint(e.Body.Code)
}

func inspect(status int, body []byte) (llm.ErrorKind, string, bool) {
	code := errmap.Code(body, "error.code")
	typ := errmap.Code(body, "error.type")
	return classify(code, typ, errmap.Message(body), status), "", true
}

// MapError classifies HTTP error bodies ({"error":{"code","type","message"}}),
// in-band stream errors and errors returned by the openai-go client.
func (o *provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		e.Message = streamErr.Body.Message
		e.Kind = classify(streamErr.code(), streamErr.Body.Type, streamErr.Body.Message, 0)
		return e
	}

	var apiErr *sdk.Error
	if errors.As(raw, &apiErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		if apiErr.Message != "" {
			e.Message = apiErr.Message
		}
		e.Kind = classify(apiErr.Code, apiErr.Type, apiErr.Message, apiErr.StatusCode)
		return e
	}

	return errmap.Map(raw, provider, inspect)
}

// classify applies code, then type, then message, then status.
func classify(code, typ, message string, status int) llm.ErrorKind {
	if kind, ok := errmap.ClassifyCode(code); ok {
		return kind
	}
	if kind, ok := errmap.ClassifyCode(typ); ok && typ != "invalid_request_error" {
		return kind
	}
	if kind, ok := errmap.ClassifyMessage(message); ok {
		return kind
	}
	if status != 0 {
		return errmap.ClassifyStatus(status)
	}
	if typ == "invalid_request_error" {
		return llm.ErrorKindRequestMalformed
	}
	return llm.ErrorKindProviderBusiness
}
