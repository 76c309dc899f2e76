package openai_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI EncodeRequest", func() {
	streaming := true

	It("renders system, multimodal parts, tool calls and tool results", func() {
		req := &llm.ChatRequest{
			Model:  "gpt-4o",
			System: "be brief",
			Stream: &streaming,
			Tools:  []llm.Tool{{Name: "weather", Parameters: map[string]any{"type": "object"}}},
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: []llm.ContentBlock{
					{Type: llm.BlockText, Text: "what is this"},
					{Type: llm.BlockImage, ImageBase64: "AAAA", MediaType: "image/png"},
					{Type: llm.BlockImage, ImageURL: "https://example.com/b.jpg"},
					{Type: llm.BlockImage},
				}},
				{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
					{Type: llm.BlockThinking, Text: "dropped"},
					{Type: llm.BlockToolUse, ToolUseID: "call_1", ToolName: "weather", ToolInput: map[string]any{"city": "Paris"}},
				}},
				{Role: llm.RoleUser, Content: []llm.ContentBlock{
					{Type: llm.BlockToolResult, ToolResultID: "call_1", ToolOutput: "sunny"},
				}},
			},
			Extra: map[string]any{"frequency_penalty": 0.2, "options": map[string]any{"num_ctx": 1}},
		}

		body, err := openai.New().EncodeRequest(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(MatchJSON(`{
			"model": "gpt-4o",
			"stream": true,
			"stream_options": {"include_usage": true},
			"frequency_penalty": 0.2,
			"tools": [{"type": "function", "function": {"name": "weather", "parameters": {"type": "object"}}}],
			"messages": [
				{"role": "system", "content": "be brief"},
				{"role": "user", "content": [
					{"type": "text", "text": "what is this"},
					{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}},
					{"type": "image_url", "image_url": {"url": "https://example.com/b.jpg"}}
				]},
				{"role": "assistant", "content": null, "tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "weather", "arguments": "{\"city\":\"Paris\"}"}}
				]},
				{"role": "tool", "tool_call_id": "call_1", "content": "sunny"}
			]
		}`))
	})

	It("collapses text-only content to a string", func() {
		body, err := openai.New().EncodeRequest(&llm.ChatRequest{
			Model:    "gpt-4",
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
		})
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded).NotTo(HaveKey("stream_options"))
		Expect(decoded["messages"]).To(Equal([]any{map[string]any{"role": "user", "content": "hi"}}))
	})

	It("round trips through ParseRequest", func() {
		p := openai.New()
		in := []byte(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}],"temperature":0.5}`)
		req, err := p.ParseRequest(in)
		Expect(err).NotTo(HaveOccurred())
		out, err := p.EncodeRequest(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(in))
	})

	It("rejects a nil request", func() {
		_, err := openai.New().EncodeRequest(nil)
		Expect(err).To(HaveOccurred())
	})
})
