package besteffort

import (
	"errors"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
)

var inspect = errmap.CodeInspector("error.code", "error.type", "error.status", "code", "__type")

// MapError classifies with the shared status, code and message tables only.
func (b *provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *StreamError
	if errors.As(raw, &streamErr) {
		e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
		if msg := errmap.Message(streamErr.Body); msg != "" {
			e.Message = msg
		}
		if kind, _, ok := inspect(0, streamErr.Body); ok {
			e.Kind = kind
		} else if kind, ok := errmap.ClassifyMessage(e.Message); ok {
			e.Kind = kind
		}
		return e
	}
	return errmap.Map(raw, provider, inspect)
}
