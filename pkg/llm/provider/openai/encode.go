package openai

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

// EncodeRequest renders a canonical request as a Chat Completions body.
// Images become image_url parts (inline images as data: URIs); thinking
// blocks and unrecognized parts are dropped.
func (o *provider) EncodeRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("encoding openai request: nil request")
	}

	out := openaiRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Stream:      req.Stream,
	}
	if len(req.Stop) > 0 {
		out.Stop = req.Stop
	}
	if req.IsStreaming(false) {
		out.StreamOptions = &openaiStreamOptions{IncludeUsage: true}
	}

	if req.System != "" {
		out.Messages = append(out.Messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, encodeMessage(msg)...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{
			Type: "function",
			Function: openaiToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding openai request: %w", err)
	}
	return wire.MergeExtra(body, req.Extra, extraFields...)
}

// encodeMessage expands one canonical message. Tool results become separate
// "tool" role messages, as the dialect requires.
func encodeMessage(msg llm.Message) []openaiMessage {
	var (
		out       []openaiMessage
		parts     []openaiContentPart
		toolCalls []openaiToolCall
		textOnly  = true
	)

	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			parts = append(parts, openaiContentPart{Type: "text", Text: block.Text})
		case llm.BlockImage:
			url := imageURL(block)
			if url == "" {
				continue
			}
			textOnly = false
			parts = append(parts, openaiContentPart{Type: "image_url", ImageURL: &openaiImageURL{URL: url}})
		case llm.BlockToolUse:
			tc := openaiToolCall{ID: block.ToolUseID, Type: "function"}
			tc.Function.Name = block.ToolName
			tc.Function.Arguments = wire.ToolArguments(block.ToolInput)
			toolCalls = append(toolCalls, tc)
		case llm.BlockToolResult:
			out = append(out, openaiMessage{
				Role:       "tool",
				ToolCallID: block.ToolResultID,
				Content:    block.ToolOutput,
			})
		}
	}

	if len(parts) == 0 && len(toolCalls) == 0 {
		return out
	}

	m := openaiMessage{Role: msg.Role, ToolCalls: toolCalls}
	switch {
	case len(parts) == 0:
		m.Content = nil
	case textOnly:
		var text string
		for _, p := range parts {
			text += p.Text
		}
		m.Content = text
	default:
		m.Content = parts
	}

	// Tool results answer calls from the previous assistant turn, so the
	// message carrying them goes first.
	return append(out, m)
}

func imageURL(block llm.ContentBlock) string {
	if mt, data, ok := block.InlineImage(); ok {
		return llm.DataURI(mt, data)
	}
	if url, ok := block.RemoteImage(); ok {
		return url
	}
	return ""
}
