// Package vertex implements the Provider interface for Anthropic Claude models
// accessed through Google Cloud's Vertex AI platform.
//
// The Vertex AI Claude API is nearly identical to the Anthropic Messages API,
// with two key differences:
//   - "model" is not passed in the request body (it is specified in the Vertex AI endpoint URL)
//   - "anthropic_version" is passed in the request body (rather than as a header)
//
// Failures in front of the model (auth, quota) use Google's error envelope.
package vertex

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// AnthropicVersion is the anthropic_version Vertex AI expects.
const AnthropicVersion = "vertex-2023-10-16"

// Provider implements the Provider interface for Vertex AI (Anthropic Claude).
type Provider struct{}

// New
func New() *Provider { return &Provider{} }

// Name
func (p *Provider) Name() string {
	return "vertex"
}

// DefaultStreaming is false - Vertex AI requires explicit "stream": true.
func (p *Provider) DefaultStreaming() bool {
	return false
}

// CanHandle matches bodies carrying a vertex anthropic_version.
func (p *Provider) CanHandle(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	return strings.HasPrefix(gjson.GetBytes(payload, "anthropic_version").String(), "vertex-")
}

func (p *Provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	req, err := anthropic.ParseRequestBody(payload)
	if err != nil {
		return nil, err
	}

	if version := gjson.GetBytes(payload, "anthropic_version").String(); version != "" {
		if req.Extra == nil {
			req.Extra = make(map[string]any)
		}
		req.Extra["anthropic_version"] = version
	}

	return req, nil
}

func (p *Provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding vertex request: nil request")
	}

	version := AnthropicVersion
	if v, ok := req.Extra["anthropic_version"].(string); ok && strings.HasPrefix(v, "vertex-") {
		version = v
	}

	return anthropic.EncodeRequestBody(req, anthropic.EncodeOptions{
		OmitModel: true,
		Version:   version,
	})
}

func (p *Provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	return anthropic.ParseResponseBody(payload)
}

// ParseStreamChunk transforms one SSE data payload; Vertex relays Messages API
// stream events unchanged.
func (p *Provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	return anthropic.TransformEvent(payload, sc)
}
