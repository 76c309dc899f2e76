// Package besteffort is the fallback dialect for payloads no other dialect
// recognizes. It probes a list of well known JSON paths (OpenAI, Anthropic,
// Ollama, Gemini and text-generation style shapes) and keeps what it cannot
// place in Extra.
package besteffort

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

const name = "besteffort"

// provider implements the Provider interface as a fallback for unknown API formats.
// It attempts to extract common fields from any JSON payload and stores the raw
// payload when parsing is incomplete.
type provider struct{}

func New() *provider { return &provider{} }

func (b *provider) Name() string {
	return name
}

// CanHandle always returns true - this is the fallback provider.
func (b *provider) CanHandle(_ []byte) bool {
	return true
}

func (b *provider) DefaultStreaming() bool {
	return false
}

var (
	maxTokensPaths   = []string{"max_tokens", "max_new_tokens", "num_predict", "maxTokens", "max_completion_tokens", "options.num_predict", "generationConfig.maxOutputTokens", "parameters.max_new_tokens"}
	temperaturePaths = []string{"temperature", "options.temperature", "generationConfig.temperature", "parameters.temperature"}
	topPPaths        = []string{"top_p", "topP", "options.top_p", "generationConfig.topP", "parameters.top_p"}
	topKPaths        = []string{"top_k", "topK", "options.top_k", "generationConfig.topK", "parameters.top_k"}
	seedPaths        = []string{"seed", "options.seed", "parameters.seed"}
	stopPaths        = []string{"stop", "stop_sequences", "stopSequences", "options.stop", "generationConfig.stopSequences"}

	requestFields = fieldSet(
		"model", "messages", "system", "stream",
		"max_tokens", "max_new_tokens", "num_predict", "maxTokens", "max_completion_tokens",
		"temperature", "top_p", "topP", "top_k", "topK",
		"seed", "stop", "stop_sequences", "stopSequences",
		"prompt", "input", "inputs",
	)
)

// ParseRequest attempts to extract a ChatRequest from an unknown format.
// It never fails: unparseable payloads come back with a parse_error in Extra.
func (b *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	if !gjson.ValidBytes(payload) {
		return &llm.ChatRequest{
			RawRequest: payload,
			Extra:      map[string]any{"parse_error": "payload is not valid JSON"},
		}, nil
	}

	root := gjson.ParseBytes(payload)
	result := &llm.ChatRequest{
		Model:       first(root, "model").String(),
		Messages:    extractMessages(root),
		System:      systemText(first(root, "system", "systemInstruction.parts.0.text")),
		MaxTokens:   intPtr(first(root, maxTokensPaths...)),
		Temperature: floatPtr(first(root, temperaturePaths...)),
		TopP:        floatPtr(first(root, topPPaths...)),
		TopK:        intPtr(first(root, topKPaths...)),
		Seed:        intPtr(first(root, seedPaths...)),
		Stop:        stringSlice(first(root, stopPaths...)),
		RawRequest:  payload,
		Extra:       unknownFields(root, requestFields),
	}

	if s := root.Get("stream"); s.IsBool() {
		stream := s.Bool()
		result.Stream = &stream
	}

	return result, nil
}

var responseFields = fieldSet(
	"model", "message", "content", "text", "output", "response", "generated_text", "result",
	"role", "choices", "candidates", "stop_reason", "finish_reason", "done_reason",
	"usage", "usageMetadata", "done", "created", "created_at",
	"prompt_eval_count", "eval_count", "total_duration",
)

// ParseResponse attempts to extract a ChatResponse from an unknown format.
func (b *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	if !gjson.ValidBytes(payload) {
		return &llm.ChatResponse{
			Done:        true,
			RawResponse: payload,
			Extra:       map[string]any{"parse_error": "payload is not valid JSON"},
		}, nil
	}

	root := gjson.ParseBytes(payload)
	result := &llm.ChatResponse{
		Model:       first(root, "model", "modelVersion").String(),
		Done:        true,
		CreatedAt:   time.Now(),
		Usage:       extractUsage(root),
		RawResponse: payload,
		Extra:       unknownFields(root, responseFields),
	}

	role := first(root, "role", "choices.0.message.role", "message.role").String()
	if role == "" || role == "model" {
		role = llm.RoleAssistant
	}
	result.Message = llm.Message{Role: role, Content: extractResponseContent(root)}

	if reason := firstString(root, stopReasonPaths...); reason != "" {
		result.StopReason = llm.NormalizeStopReason(reason)
	}
	if done := root.Get("done"); done.IsBool() {
		result.Done = done.Bool()
	}

	return result, nil
}

var stopReasonPaths = []string{
	"stop_reason", "finish_reason", "done_reason",
	"choices.0.finish_reason", "candidates.0.finishReason", "delta.stop_reason",
}

// responseTextPaths are probed in order for a plain text response.
var responseTextPaths = []string{
	"choices.0.message.content",
	"choices.0.delta.content",
	"choices.0.text",
	"message.content",
	"candidates.0.content.parts.0.text",
	"content",
	"text", "output", "response", "generated_text", "result",
	"0.generated_text",
}

// extractResponseContent tries multiple strategies to find the response content.
func extractResponseContent(root gjson.Result) []llm.ContentBlock {
	// Anthropic-style content array
	if content := root.Get("content"); content.IsArray() {
		if blocks := parseBlocks(content); len(blocks) > 0 {
			return blocks
		}
	}

	if text := firstString(root, responseTextPaths...); text != "" {
		return []llm.ContentBlock{{Type: llm.BlockText, Text: text}}
	}

	// Fallback: empty content, raw payload is preserved in RawResponse
	return []llm.ContentBlock{}
}

// extractUsage reads OpenAI, Anthropic, Gemini and Ollama style metrics.
func extractUsage(root gjson.Result) *llm.Usage {
	usage := &llm.Usage{}
	found := false

	set := func(dst *int, paths ...string) {
		if r := first(root, paths...); r.Exists() {
			*dst = int(r.Int())
			found = true
		}
	}
	set(&usage.PromptTokens, "usage.prompt_tokens", "usage.input_tokens", "usageMetadata.promptTokenCount", "prompt_eval_count")
	set(&usage.CompletionTokens, "usage.completion_tokens", "usage.output_tokens", "usageMetadata.candidatesTokenCount", "eval_count")
	set(&usage.TotalTokens, "usage.total_tokens", "usageMetadata.totalTokenCount")

	if r := root.Get("total_duration"); r.Exists() {
		usage.TotalDurationNs = r.Int()
		found = true
	}

	if !found {
		return nil
	}

	// Calculate total if not present
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return usage
}

// extractMessages attempts to extract messages from various formats.
func extractMessages(root gjson.Result) []llm.Message {
	if msgs := root.Get("messages"); msgs.IsArray() {
		return parseMessageArray(msgs)
	}
	if contents := root.Get("contents"); contents.IsArray() {
		return parseMessageArray(contents)
	}

	for _, path := range []string{"prompt", "input"} {
		if r := root.Get(path); r.Type == gjson.String && r.Str != "" {
			return []llm.Message{llm.NewTextMessage(llm.RoleUser, r.Str)}
		}
	}

	var messages []llm.Message
	root.Get("inputs").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			messages = append(messages, llm.NewTextMessage(llm.RoleUser, v.Str))
		}
		return true
	})
	return messages
}

// parseMessageArray converts a generic message array to canonical messages.
func parseMessageArray(msgs gjson.Result) []llm.Message {
	var messages []llm.Message
	msgs.ForEach(func(_, m gjson.Result) bool {
		if !m.IsObject() {
			return true
		}

		role := m.Get("role").String()
		switch role {
		case "":
			role = llm.RoleUser
		case "model":
			role = llm.RoleAssistant
		}

		converted := llm.Message{Role: role}
		content := first(m, "content", "parts")
		switch {
		case content.Type == gjson.String:
			converted.Content = []llm.ContentBlock{{Type: llm.BlockText, Text: content.Str}}
		case content.IsArray():
			converted.Content = parseBlocks(content)
		}

		messages = append(messages, converted)
		return true
	})
	return messages
}

// parseBlocks reads Anthropic, OpenAI and Gemini style content parts.
func parseBlocks(content gjson.Result) []llm.ContentBlock {
	var blocks []llm.ContentBlock
	content.ForEach(func(_, block gjson.Result) bool {
		if !block.IsObject() {
			return true
		}

		cb := llm.ContentBlock{
			Type: block.Get("type").String(),
			Text: block.Get("text").String(),
		}
		if cb.Type == "" {
			cb.Type = llm.BlockText
		}

		if source := block.Get("source"); source.IsObject() {
			cb.ImageBase64 = source.Get("data").String()
			cb.MediaType = source.Get("media_type").String()
			cb.ImageURL = source.Get("url").String()
		}
		if inline := block.Get("inlineData"); inline.IsObject() {
			cb.Type = llm.BlockImage
			cb.ImageBase64 = inline.Get("data").String()
			cb.MediaType = inline.Get("mimeType").String()
		}
		if url := first(block, "image_url.url", "image_url"); url.Type == gjson.String {
			cb.ImageURL = url.Str
		}

		if cb.Type == llm.BlockToolUse {
			cb.ToolUseID = block.Get("id").String()
			cb.ToolName = block.Get("name").String()
			if input, ok := block.Get("input").Value().(map[string]any); ok {
				cb.ToolInput = input
			}
		}

		blocks = append(blocks, cb)
		return true
	})
	return blocks
}

// Helper functions for probing values

func first(root gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if r := root.Get(path); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// firstString returns the first non-empty string found at paths.
func firstString(root gjson.Result, paths ...string) string {
	for _, path := range paths {
		if r := root.Get(path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func systemText(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	var text string
	r.ForEach(func(_, block gjson.Result) bool {
		if t := block.Get("text").String(); t != "" {
			if text != "" {
				text += "\n"
			}
			text += t
		}
		return true
	})
	return text
}

func intPtr(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	v := int(r.Int())
	return &v
}

func floatPtr(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Float()
	return &v
}

func stringSlice(r gjson.Result) []string {
	if r.Type == gjson.String {
		return []string{r.Str}
	}
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			out = append(out, v.Str)
		}
		return true
	})
	return out
}

func fieldSet(fields ...string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// unknownFields collects top-level fields not in known, decoded the way
// encoding/json would.
func unknownFields(root gjson.Result, known map[string]bool) map[string]any {
	extra := make(map[string]any)
	root.ForEach(func(k, v gjson.Result) bool {
		if !known[k.String()] {
			extra[k.String()] = v.Value()
		}
		return true
	})
	return extra
}
