// Package gemini implements the Google Gemini generateContent dialect.
package gemini

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
)

const name = "gemini"

// extraFields are top-level request fields carried through Extra.
var extraFields = []string{"safetySettings", "toolConfig", "cachedContent", "labels"}

type provider struct{}

func New() *provider { return &provider{} }

func (g *provider) Name() string {
	return name
}

// DefaultStreaming is false: streaming is selected by the endpoint, not the
// body.
func (g *provider) DefaultStreaming() bool {
	return false
}

// CanHandle matches request bodies with contents and response bodies with
// candidates.
func (g *provider) CanHandle(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	return gjson.GetBytes(payload, "contents").IsArray() ||
		gjson.GetBytes(payload, "candidates").IsArray()
}

func (g *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req geminiRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	result := &llm.ChatRequest{
		Model:      strings.TrimPrefix(req.Model, "models/"),
		Messages:   make([]llm.Message, 0, len(req.Contents)),
		RawRequest: payload,
	}

	if req.SystemInstruction != nil {
		var texts []string
		for _, part := range req.SystemInstruction.Parts {
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		result.System = strings.Join(texts, "\n")
	}

	for _, content := range req.Contents {
		result.Messages = append(result.Messages, convertContent(content))
	}

	if cfg := req.GenerationConfig; cfg != nil {
		result.Temperature = cfg.Temperature
		result.TopP = cfg.TopP
		result.TopK = cfg.TopK
		result.MaxTokens = cfg.MaxOutputTokens
		result.Stop = cfg.StopSequences
		result.Seed = cfg.Seed
	}

	for _, tool := range req.Tools {
		for _, fn := range tool.FunctionDeclarations {
			result.Tools = append(result.Tools, llm.Tool{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			})
		}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err == nil {
		result.Extra = wire.PickExtra(raw, extraFields...)
	}

	return result, nil
}

func convertRole(role string) string {
	if role == "model" {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func convertContent(content geminiContent) llm.Message {
	msg := llm.Message{Role: convertRole(content.Role), Content: []llm.ContentBlock{}}

	for _, part := range content.Parts {
		switch {
		case part.FunctionCall != nil:
			msg.Content = append(msg.Content, llm.ContentBlock{
				Type:      llm.BlockToolUse,
				ToolUseID: part.FunctionCall.ID,
				ToolName:  part.FunctionCall.Name,
				ToolInput: part.FunctionCall.Args,
			})
		case part.FunctionResponse != nil:
			id := part.FunctionResponse.ID
			if id == "" {
				id = part.FunctionResponse.Name
			}
			msg.Content = append(msg.Content, llm.ContentBlock{
				Type:         llm.BlockToolResult,
				ToolResultID: id,
				ToolOutput:   responseText(part.FunctionResponse.Response),
			})
		case part.InlineData != nil:
			msg.Content = append(msg.Content, llm.ContentBlock{
				Type:        llm.BlockImage,
				ImageBase64: part.InlineData.Data,
				MediaType:   part.InlineData.MimeType,
			})
		case part.FileData != nil:
			msg.Content = append(msg.Content, llm.ContentBlock{
				Type:      llm.BlockImage,
				ImageURL:  part.FileData.FileURI,
				MediaType: part.FileData.MimeType,
			})
		case part.Thought:
			msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockThinking, Text: part.Text})
		case part.Text != "":
			msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: part.Text})
		}
	}

	return msg
}

// responseText flattens a functionResponse.response object. A lone string
// "content" or "result" field is returned as is.
func responseText(resp map[string]any) string {
	if len(resp) == 1 {
		for _, key := range []string{"content", "result"} {
			if s, ok := resp[key].(string); ok {
				return s
			}
		}
	}
	return wire.ToolArguments(resp)
}

func (g *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	result := &llm.ChatResponse{
		Model:       resp.ModelVersion,
		Done:        true,
		Usage:       convertUsage(resp.UsageMetadata),
		RawResponse: payload,
		Message:     llm.Message{Role: llm.RoleAssistant},
	}
	if resp.ResponseID != "" {
		result.Extra = map[string]any{"responseId": resp.ResponseID}
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			result.StopReason = llm.StopReasonContentFilter
		}
		return result, nil
	}

	candidate := resp.Candidates[0]
	result.Message = convertContent(candidate.Content)
	result.Message.Role = llm.RoleAssistant
	result.StopReason = stopReason(candidate.FinishReason, hasToolUse(result.Message))

	return result, nil
}

func hasToolUse(msg llm.Message) bool {
	for _, block := range msg.Content {
		if block.Type == llm.BlockToolUse {
			return true
		}
	}
	return false
}

// stopReason normalizes a finishReason. Gemini reports STOP even when the
// turn ended in function calls.
func stopReason(finish string, toolCalls bool) string {
	reason := llm.NormalizeStopReason(finish)
	if toolCalls && reason == llm.StopReasonStop {
		return llm.StopReasonToolCalls
	}
	return reason
}

func convertUsage(u *geminiUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:         u.PromptTokenCount,
		CompletionTokens:     u.CandidatesTokenCount + u.ThoughtsTokenCount,
		TotalTokens:          u.TotalTokenCount,
		CacheReadInputTokens: u.CachedContentTokenCount,
	}
}
