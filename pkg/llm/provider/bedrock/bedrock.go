// Package bedrock implements the AWS Bedrock InvokeModel dialect for
// Anthropic Claude models.
//
// Request and response bodies follow the Anthropic Messages API with the model
// specified in the URL path rather than the request body, and an
// anthropic_version field in the body. Streams come from
// InvokeModelWithResponseStream, where each event-stream message wraps one
// base64 encoded Messages API event.
package bedrock

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
)

// AnthropicVersion is the anthropic_version Bedrock expects.
const AnthropicVersion = "bedrock-2023-05-31"

// Provider implements the Provider interface for AWS Bedrock.
type Provider struct{}

// New creates a new Bedrock provider.
func New() *Provider { return &Provider{} }

// Name returns the provider name.
func (p *Provider) Name() string {
	return "bedrock"
}

// DefaultStreaming returns false. Bedrock's InvokeModel does not stream by
// default; streaming requires InvokeModelWithResponseStream.
func (p *Provider) DefaultStreaming() bool {
	return false
}

// CanHandle matches bodies carrying a bedrock anthropic_version.
func (p *Provider) CanHandle(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	return strings.HasPrefix(gjson.GetBytes(payload, "anthropic_version").String(), "bedrock-")
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

// EncodeRequest renders a Messages API body without the model, which Bedrock
// takes from the URL.
func (p *Provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding bedrock request: nil request")
	}

	version := AnthropicVersion
	if v, ok := req.Extra["anthropic_version"].(string); ok && strings.HasPrefix(v, "bedrock-") {
		version = v
	}

	// InvokeModel rejects the stream field; streaming is chosen by endpoint.
	encoded := *req
	encoded.Stream = nil

	return anthropic.EncodeRequestBody(&encoded, anthropic.EncodeOptions{
		OmitModel: true,
		Version:   version,
	})
}

func (p *Provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	return anthropic.ParseResponseBody(payload)
}
