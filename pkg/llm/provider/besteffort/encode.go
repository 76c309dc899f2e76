package besteffort

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

type genericMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type genericRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []genericMessage `json:"messages"`
	Stream      *bool            `json:"stream,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
	Seed        *int             `json:"seed,omitempty"`
}

// EncodeRequest renders the lowest common denominator chat body: string
// contents with the system prompt as the first message. Non-text content is
// dropped; unrecognized fields captured in Extra are passed back through.
func (b *provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding request: nil request")
	}

	out := genericRequest{
		Model:       req.Model,
		Messages:    []genericMessage{},
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Seed:        req.Seed,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, genericMessage{Role: llm.RoleSystem, Content: req.System})
	}
	for _, msg := range req.Messages {
		text := msg.GetText()
		if text == "" {
			continue
		}
		out.Messages = append(out.Messages, genericMessage{Role: msg.Role, Content: text})
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	keys := make([]string, 0, len(req.Extra))
	for k := range req.Extra {
		if k != "parse_error" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return wire.MergeExtra(body, req.Extra, keys...)
}
