package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

// DefaultMaxTokens is used when a request does not set max_tokens, which the
// Messages API requires.
const DefaultMaxTokens = 4096

// EncodeOptions adjusts the body for hosts that wrap the Messages API.
type EncodeOptions struct {
	// OmitModel leaves the model out of the body (it travels in the URL).
	OmitModel bool

	// Version is written as anthropic_version when set.
	Version string
}

// EncodeRequestBody renders a canonical request as a Messages API body.
// Images become base64 or url sources; images without a recognizable media
// type, thinking blocks and unknown blocks are dropped. Consecutive messages
// with the same role are merged and tool results travel in user turns.
func EncodeRequestBody(req *llm.ChatRequest, opts EncodeOptions) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding anthropic request: nil request")
	}

	out := anthropicRequest{
		AnthropicVersion: opts.Version,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		Stop:             req.Stop,
		Stream:           req.Stream,
		MaxTokens:        DefaultMaxTokens,
	}
	if !opts.OmitModel {
		out.Model = req.Model
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		out.MaxTokens = *req.MaxTokens
	}

	system := req.System
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += msg.GetText()
			continue
		}

		role := msg.Role
		if role == llm.RoleTool {
			role = llm.RoleUser
		}

		blocks := encodeBlocks(msg.Content)
		if len(blocks) == 0 {
			continue
		}

		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			prev, _ := out.Messages[n-1].Content.([]anthropicContentBlock)
			out.Messages[n-1].Content = append(prev, blocks...)
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: role, Content: blocks})
	}
	if system != "" {
		out.System = system
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out.Tools = append(out.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding anthropic request: %w", err)
	}
	return wire.MergeExtra(body, req.Extra, extraFields...)
}

func encodeBlocks(content []llm.ContentBlock) []anthropicContentBlock {
	out := make([]anthropicContentBlock, 0, len(content))
	for _, block := range content {
		switch block.Type {
		case llm.BlockText:
			if block.Text == "" {
				continue
			}
			out = append(out, anthropicContentBlock{Type: "text", Text: block.Text})

		case llm.BlockImage:
			if src := imageSource(block); src != nil {
				out = append(out, anthropicContentBlock{Type: "image", Source: src})
			}

		case llm.BlockToolUse:
			input := block.ToolInput
			if input == nil {
				input = map[string]any{}
			}
			out = append(out, anthropicContentBlock{
				Type:  "tool_use",
				ID:    block.ToolUseID,
				Name:  block.ToolName,
				Input: input,
			})

		case llm.BlockToolResult:
			out = append(out, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ToolResultID,
				Content:   block.ToolOutput,
				IsError:   block.IsError,
			})
		}
	}
	return out
}

func imageSource(block llm.ContentBlock) *anthropicSource {
	if mt, data, ok := block.InlineImage(); ok {
		if mt == "" {
			mt = llm.SniffImageMediaType(data)
		}
		if mt == "" || data == "" {
			return nil
		}
		return &anthropicSource{Type: "base64", MediaType: mt, Data: data}
	}
	if url, ok := block.RemoteImage(); ok {
		return &anthropicSource{Type: "url", URL: url}
	}
	return nil
}
