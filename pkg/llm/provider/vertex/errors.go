package vertex

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/gemini"
)

// inspect routes Google envelopes ({"error":{"status": ...}}) and Anthropic
// envelopes ({"type":"error","error":{"type": ...}}) to their classifiers.
func inspect(status int, body []byte) (llm.ErrorKind, string, bool) {
	if gjson.GetBytes(body, "error.status").Exists() || gjson.GetBytes(body, "0.error.status").Exists() {
		return gemini.InspectError(status, body)
	}
	return anthropic.InspectError(status, body)
}

func (p *Provider) MapError(raw error, provider string) *llm.Error {
	var streamErr *anthropic.StreamError
	if errors.As(raw, &streamErr) {
		return anthropic.MapError(raw, provider)
	}
	return errmap.Map(raw, provider, inspect)
}
