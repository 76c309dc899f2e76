// Package openai implements the OpenAI Chat Completions dialect, which is also
// spoken by most OpenAI-compatible gateways (DeepSeek, vLLM, OpenRouter, ...).
package openai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

const name = "openai"

// extraFields are request fields kept in ChatRequest.Extra and re-emitted
// when encoding for this dialect.
var extraFields = []string{
	"frequency_penalty", "presence_penalty", "response_format", "logit_bias",
	"user", "tool_choice", "parallel_tool_calls", "reasoning_effort",
}

// provider implements the OpenAI Chat Completions dialect.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return name
}

func (o *provider) DefaultStreaming() bool {
	return false
}

var modelPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// CanHandle matches OpenAI model names and chat.completion payloads.
func (o *provider) CanHandle(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}

	model := gjson.GetBytes(payload, "model").String()
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}

	if strings.HasPrefix(gjson.GetBytes(payload, "object").String(), "chat.completion") {
		return true
	}

	return gjson.GetBytes(payload, "choices").IsArray()
}

func (o *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req openaiRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	var system []string
	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "system" || msg.Role == "developer" {
			if text, ok := msg.Content.(string); ok {
				system = append(system, text)
				continue
			}
		}
		messages = append(messages, convertMessage(msg))
	}

	result := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      strings.Join(system, "\n"),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        wire.StopSequences(req.Stop),
		Seed:        req.Seed,
		Stream:      req.Stream,
		RawRequest:  payload,
	}

	for _, t := range req.Tools {
		result.Tools = append(result.Tools, llm.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err == nil {
		result.Extra = wire.PickExtra(raw, extraFields...)
	}

	return result, nil
}

// convertMessage maps an OpenAI message onto canonical content blocks.
func convertMessage(msg openaiMessage) llm.Message {
	converted := llm.Message{Role: msg.Role, Content: []llm.ContentBlock{}}

	if msg.Role == "tool" && msg.ToolCallID != "" {
		text, _ := msg.Content.(string)
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:         llm.BlockToolResult,
			ToolResultID: msg.ToolCallID,
			ToolOutput:   text,
		})
		return converted
	}

	if msg.ReasoningContent != "" {
		converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockThinking, Text: msg.ReasoningContent})
	}

	switch content := msg.Content.(type) {
	case string:
		if content != "" {
			converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockText, Text: content})
		}
	case []any:
		for _, item := range content {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch part["type"] {
			case "text":
				text, _ := part["text"].(string)
				converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockText, Text: text})
			case "image_url":
				image, _ := part["image_url"].(map[string]any)
				url, _ := image["url"].(string)
				if url == "" {
					continue
				}
				converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockImage, ImageURL: url})
			}
		}
	}

	for _, tc := range msg.ToolCalls {
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: wire.ParseToolArguments(tc.Function.Arguments),
		})
	}

	return converted
}

func (o *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp openaiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		Done:        true,
		Usage:       convertUsage(resp.Usage),
		RawResponse: payload,
		Extra: map[string]any{
			"id":     resp.ID,
			"object": resp.Object,
		},
	}
	if resp.Created != 0 {
		result.CreatedAt = time.Unix(resp.Created, 0)
	}

	if len(resp.Choices) == 0 {
		result.Message = llm.Message{Role: llm.RoleAssistant}
		return result, nil
	}

	choice := resp.Choices[0]
	result.Message = convertMessage(choice.Message)
	result.StopReason = llm.NormalizeStopReason(choice.FinishReason)

	return result, nil
}

func convertUsage(u *openaiUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	usage := &llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CacheReadInputTokens = u.PromptTokensDetails.CachedTokens
	}
	return usage
}
