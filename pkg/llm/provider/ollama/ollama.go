// Package ollama implements the Ollama /api/chat dialect. Streams are newline
// delimited JSON objects rather than server-sent events.
package ollama

import (
	"encoding/json"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

const name = "ollama"

// provider implements the Provider interface for Ollama's API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return name
}

// DefaultStreaming is true: Ollama streams unless asked not to.
func (o *provider) DefaultStreaming() bool {
	return true
}

func (o *provider) CanHandle(payload []byte) bool {
	var probe struct {
		KeepAlive any   `json:"keep_alive"`
		Options   any   `json:"options"`
		Context   []int `json:"context"`

		// Ollama-specific response fields
		TotalDuration int64 `json:"total_duration"`
		EvalCount     int   `json:"eval_count"`
	}

	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}

	// Check for Ollama-specific request fields
	if probe.KeepAlive != nil || probe.Options != nil {
		return true
	}

	// Check for Ollama-specific response fields
	if probe.Context != nil || probe.TotalDuration > 0 || probe.EvalCount > 0 {
		return true
	}

	return false
}

func (o *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req ollamaRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	result := &llm.ChatRequest{
		Model:      req.Model,
		Messages:   messages,
		Stream:     req.Stream,
		RawRequest: payload,
	}

	for _, t := range req.Tools {
		result.Tools = append(result.Tools, llm.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	extra := make(map[string]any)

	// Map options to common fields
	if req.Options != nil {
		result.Temperature = req.Options.Temperature
		result.TopP = req.Options.TopP
		result.TopK = req.Options.TopK
		result.Seed = req.Options.Seed
		result.MaxTokens = req.Options.NumPredict
		result.Stop = req.Options.Stop

		// Preserve Ollama-specific options
		if req.Options.NumCtx != nil {
			extra["num_ctx"] = *req.Options.NumCtx
		}
		if req.Options.RepeatPenalty != nil {
			extra["repeat_penalty"] = *req.Options.RepeatPenalty
		}
		if req.Options.RepeatLastN != nil {
			extra["repeat_last_n"] = *req.Options.RepeatLastN
		}
	}

	// Preserve other Ollama-specific fields
	if req.Format != nil {
		extra["format"] = req.Format
	}
	if req.KeepAlive != nil {
		extra["keep_alive"] = req.KeepAlive
	}
	if req.Think != nil {
		extra["think"] = req.Think
	}
	if len(extra) > 0 {
		result.Extra = extra
	}

	return result, nil
}

// convertMessage maps one Ollama message onto canonical blocks. Empty content
// strings produce no text block.
func convertMessage(msg ollamaMessage) llm.Message {
	converted := llm.Message{Role: msg.Role, Content: []llm.ContentBlock{}}

	if msg.Role == llm.RoleTool {
		id := msg.ToolCallID
		if id == "" {
			id = msg.ToolName
		}
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:         llm.BlockToolResult,
			ToolResultID: id,
			ToolOutput:   msg.Content,
		})
		return converted
	}

	if msg.Thinking != "" {
		converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockThinking, Text: msg.Thinking})
	}
	if msg.Content != "" {
		converted.Content = append(converted.Content, llm.ContentBlock{Type: llm.BlockText, Text: msg.Content})
	}

	// Handle images
	for _, img := range msg.Images {
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:        llm.BlockImage,
			ImageBase64: img,
			MediaType:   llm.SniffImageMediaType(img),
		})
	}

	for _, tc := range msg.ToolCalls {
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: tc.Function.Arguments,
		})
	}

	return converted
}

func (o *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	// Determine stop reason
	stopReason := ""
	if resp.Done {
		stopReason = llm.NormalizeStopReason(resp.DoneReason)
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		Message:     convertMessage(resp.Message),
		Done:        resp.Done,
		StopReason:  stopReason,
		Usage:       convertUsage(&resp),
		CreatedAt:   resp.CreatedAt,
		RawResponse: payload,
	}

	// Preserve Ollama-specific fields
	if resp.Context != nil {
		result.Extra = map[string]any{
			"context":       resp.Context,
			"load_duration": resp.LoadDuration,
			"eval_duration": resp.EvalDuration,
		}
	}

	return result, nil
}

// convertUsage maps Ollama metrics to the common Usage format.
func convertUsage(resp *ollamaResponse) *llm.Usage {
	if resp.PromptEvalCount == 0 && resp.EvalCount == 0 && resp.TotalDuration == 0 {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		TotalDurationNs:  resp.TotalDuration,
		PromptDurationNs: resp.PromptEvalDuration,
	}
}
