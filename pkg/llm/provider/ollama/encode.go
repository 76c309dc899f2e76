package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

// topLevelExtra are Extra keys sent as request fields; everything else Ollama
// understands goes into options.
var topLevelExtra = []string{"format", "keep_alive", "think"}

// EncodeRequest renders a canonical request as an /api/chat body. Images are
// sent as bare base64; remote image URLs cannot be expressed and are dropped.
func (o *provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding ollama request: nil request")
	}

	out := ollamaRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}

	opts := &ollamaOptions{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Seed:        req.Seed,
		NumPredict:  req.MaxTokens,
		Stop:        req.Stop,
		NumCtx:      intExtra(req.Extra, "num_ctx"),
		RepeatLastN: intExtra(req.Extra, "repeat_last_n"),
	}
	if v, ok := req.Extra["repeat_penalty"].(float64); ok {
		opts.RepeatPenalty = &v
	}
	if !opts.empty() {
		out.Options = opts
	}

	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: llm.RoleSystem, Content: req.System})
	}

	// Tool results only carry the call id; Ollama wants the tool name.
	toolNames := make(map[string]string)
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			if block.Type == llm.BlockToolUse && block.ToolUseID != "" {
				toolNames[block.ToolUseID] = block.ToolName
			}
		}
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, encodeMessage(msg, toolNames)...)
	}

	for _, t := range req.Tools {
		tool := ollamaTool{Type: "function"}
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		out.Tools = append(out.Tools, tool)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}
	return wire.MergeExtra(body, req.Extra, topLevelExtra...)
}

func encodeMessage(msg llm.Message, toolNames map[string]string) []ollamaMessage {
	var out []ollamaMessage
	m := ollamaMessage{Role: msg.Role}
	empty := true

	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			m.Content += block.Text
			empty = false
		case llm.BlockThinking:
			m.Thinking += block.Text
			empty = false
		case llm.BlockImage:
			if _, data, ok := block.InlineImage(); ok {
				m.Images = append(m.Images, data)
				empty = false
			}
		case llm.BlockToolUse:
			args := block.ToolInput
			if args == nil {
				args = map[string]any{}
			}
			m.ToolCalls = append(m.ToolCalls, ollamaToolCall{
				ID:       block.ToolUseID,
				Function: ollamaToolFunction{Name: block.ToolName, Arguments: args},
			})
			empty = false
		case llm.BlockToolResult:
			out = append(out, ollamaMessage{
				Role:       llm.RoleTool,
				Content:    block.ToolOutput,
				ToolName:   toolNames[block.ToolResultID],
				ToolCallID: block.ToolResultID,
			})
		}
	}

	if empty {
		return out
	}
	return append(out, m)
}

// intExtra reads an integer option that may have been decoded from JSON as a
// float64.
func intExtra(extra map[string]any, key string) *int {
	switch v := extra[key].(type) {
	case int:
		return &v
	case float64:
		n := int(v)
		return &n
	default:
		return nil
	}
}

func (o *ollamaOptions) empty() bool {
	return o.Temperature == nil && o.TopP == nil && o.TopK == nil && o.Seed == nil &&
		o.NumPredict == nil && o.NumCtx == nil && o.RepeatPenalty == nil &&
		o.RepeatLastN == nil && len(o.Stop) == 0
}
