// Package anthropic implements the Anthropic Messages dialect. The request,
// response and stream codecs are exported so the Bedrock and Vertex dialects,
// which wrap the same body, can reuse them.
package anthropic

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

const name = "anthropic"

// APIVersion is sent in the anthropic-version header.
const APIVersion = "2023-06-01"

var extraFields = []string{"metadata", "tool_choice", "thinking", "service_tier"}

// provider implements the Anthropic Messages dialect.
type provider struct{}

func New() *provider { return &provider{} }

func (p *provider) Name() string {
	return name
}

func (p *provider) DefaultStreaming() bool {
	return false
}

func (p *provider) CanHandle(payload []byte) bool {
	var probe struct {
		Model     string `json:"model"`
		MaxTokens *int   `json:"max_tokens"`

		// Union type: string or []ContentBlock
		System any `json:"system"`

		// Response-specific fields
		Type       string `json:"type"`
		StopReason string `json:"stop_reason"`
	}

	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}

	if strings.HasPrefix(probe.Model, "claude-") {
		return true
	}

	if probe.Type == "message" && probe.StopReason != "" {
		return true
	}

	// max_tokens is required for Anthropic, optional for others;
	// combined with a top-level system field it is a strong signal.
	return probe.MaxTokens != nil && probe.System != nil
}

func (p *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	return ParseRequestBody(payload)
}

func (p *provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	return EncodeRequestBody(req, EncodeOptions{})
}

func (p *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	return ParseResponseBody(payload)
}

func (p *provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	return TransformEvent(payload, sc)
}

// ParseRequestBody parses a Messages API request body.
func ParseRequestBody(payload []byte) (*llm.ChatRequest, error) {
	var req anthropicRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: parseContent(msg.Content),
		})
	}

	result := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      systemText(req.System),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stop:        req.Stop,
		Stream:      req.Stream,
		RawRequest:  payload,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		result.MaxTokens = &maxTokens
	}

	for _, t := range req.Tools {
		result.Tools = append(result.Tools, llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err == nil {
		result.Extra = wire.PickExtra(raw, extraFields...)
	}

	return result, nil
}

// systemText flattens a system prompt given as a string or as text blocks.
func systemText(system any) string {
	switch s := system.(type) {
	case string:
		return s
	case []any:
		var parts []string
		for _, item := range s {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// parseContent converts message content given as a string or as a block list.
func parseContent(content any) []llm.ContentBlock {
	switch c := content.(type) {
	case string:
		return []llm.ContentBlock{{Type: llm.BlockText, Text: c}}
	case []any:
		out := make([]llm.ContentBlock, 0, len(c))
		for _, item := range c {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if cb, ok := parseBlock(block); ok {
				out = append(out, cb)
			}
		}
		return out
	default:
		return []llm.ContentBlock{}
	}
}

func parseBlock(block map[string]any) (llm.ContentBlock, bool) {
	str := func(m map[string]any, key string) string {
		s, _ := m[key].(string)
		return s
	}

	switch str(block, "type") {
	case "text":
		return llm.ContentBlock{Type: llm.BlockText, Text: str(block, "text")}, true
	case "thinking":
		return llm.ContentBlock{Type: llm.BlockThinking, Text: str(block, "thinking")}, true
	case "image":
		source, _ := block["source"].(map[string]any)
		switch str(source, "type") {
		case "base64":
			return llm.ContentBlock{Type: llm.BlockImage, ImageBase64: str(source, "data"), MediaType: str(source, "media_type")}, true
		case "url":
			return llm.ContentBlock{Type: llm.BlockImage, ImageURL: str(source, "url")}, true
		}
		return llm.ContentBlock{}, false
	case "tool_use":
		input, _ := block["input"].(map[string]any)
		return llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: str(block, "id"),
			ToolName:  str(block, "name"),
			ToolInput: input,
		}, true
	case "tool_result":
		isErr, _ := block["is_error"].(bool)
		return llm.ContentBlock{
			Type:         llm.BlockToolResult,
			ToolResultID: str(block, "tool_use_id"),
			ToolOutput:   toolResultText(block["content"]),
			IsError:      isErr,
		}, true
	default:
		return llm.ContentBlock{}, false
	}
}

func toolResultText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var sb strings.Builder
		for _, item := range c {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// ParseResponseBody parses a complete Messages API response.
func ParseResponseBody(payload []byte) (*llm.ChatResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	content := make([]llm.ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content = append(content, llm.ContentBlock{Type: llm.BlockText, Text: block.Text})
		case "thinking":
			content = append(content, llm.ContentBlock{Type: llm.BlockThinking, Text: block.Thinking})
		case "tool_use":
			input, _ := block.Input.(map[string]any)
			content = append(content, llm.ContentBlock{
				Type:      llm.BlockToolUse,
				ToolUseID: block.ID,
				ToolName:  block.Name,
				ToolInput: input,
			})
		}
	}

	role := resp.Role
	if role == "" {
		role = llm.RoleAssistant
	}

	return &llm.ChatResponse{
		Model:       resp.Model,
		Message:     llm.Message{Role: role, Content: content},
		Done:        true,
		StopReason:  llm.NormalizeStopReason(resp.StopReason),
		Usage:       convertUsage(resp.Usage),
		CreatedAt:   time.Now(),
		RawResponse: payload,
		Extra: map[string]any{
			"id":   resp.ID,
			"type": resp.Type,
		},
	}, nil
}

func convertUsage(u *anthropicUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:             u.InputTokens,
		CompletionTokens:         u.OutputTokens,
		TotalTokens:              u.InputTokens + u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}
