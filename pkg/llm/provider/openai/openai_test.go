package openai_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Provider", func() {
	var p provider.Provider

	BeforeEach(func() {
		p = openai.New()
	})

	It("is named openai and does not stream by default", func() {
		Expect(p.Name()).To(Equal("openai"))
		Expect(p.DefaultStreaming()).To(BeFalse())
	})

	DescribeTable("CanHandle",
		func(payload string, want bool) {
			Expect(p.CanHandle([]byte(payload))).To(Equal(want))
		},
		Entry("gpt-4", `{"model": "gpt-4", "messages": []}`, true),
		Entry("o3 models", `{"model": "o3-mini", "messages": []}`, true),
		Entry("chatgpt models", `{"model": "chatgpt-4o-latest", "messages": []}`, true),
		Entry("chat.completion object", `{"object": "chat.completion", "model": "x", "choices": []}`, true),
		Entry("stream chunk object", `{"object": "chat.completion.chunk", "model": "x"}`, true),
		Entry("anthropic request", `{"model": "claude-3-sonnet", "max_tokens": 1024, "messages": []}`, false),
		Entry("invalid JSON", `not valid json`, false),
		Entry("empty object", `{}`, false),
	)

	Describe("ParseRequest", func() {
		It("lifts system messages and parses the conversation", func() {
			req, err := p.ParseRequest([]byte(`{
				"model": "gpt-4",
				"messages": [
					{"role": "system", "content": "You are a helpful assistant."},
					{"role": "user", "content": "Hello!"}
				]
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Model).To(Equal("gpt-4"))
			Expect(req.System).To(Equal("You are a helpful assistant."))
			Expect(req.Messages).To(HaveLen(1))
			Expect(req.Messages[0].GetText()).To(Equal("Hello!"))
		})

		It("parses generation parameters and stop sequences", func() {
			req, err := p.ParseRequest([]byte(`{
				"model": "gpt-4",
				"max_tokens": 2048,
				"temperature": 0.8,
				"seed": 42,
				"stop": "END",
				"stream": true,
				"messages": [{"role": "user", "content": "Hello"}]
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(*req.MaxTokens).To(Equal(2048))
			Expect(*req.Temperature).To(BeNumerically("~", 0.8, 0.001))
			Expect(*req.Seed).To(Equal(42))
			Expect(req.Stop).To(ConsistOf("END"))
			Expect(*req.Stream).To(BeTrue())
		})

		It("keeps dialect specific fields in Extra", func() {
			req, err := p.ParseRequest([]byte(`{
				"model": "gpt-4",
				"frequency_penalty": 0.5,
				"response_format": {"type": "json_object"},
				"messages": [{"role": "user", "content": "Hello"}]
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Extra).To(HaveKeyWithValue("frequency_penalty", 0.5))
			Expect(req.Extra).To(HaveKey("response_format"))
		})

		It("parses image parts, tool calls, tool results and tools", func() {
			req, err := p.ParseRequest([]byte(`{
				"model": "gpt-4o",
				"tools": [{"type": "function", "function": {"name": "weather", "parameters": {"type": "object"}}}],
				"messages": [
					{"role": "user", "content": [
						{"type": "text", "text": "What is this?"},
						{"type": "image_url", "image_url": {"url": "https://example.com/a.png"}}
					]},
					{"role": "assistant", "content": null, "tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "weather", "arguments": "{\"city\":\"Paris\"}"}}
					]},
					{"role": "tool", "tool_call_id": "call_1", "content": "sunny"}
				]
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Tools).To(HaveLen(1))
			Expect(req.Tools[0].Name).To(Equal("weather"))

			Expect(req.Messages[0].Content).To(HaveLen(2))
			Expect(req.Messages[0].Content[1].Type).To(Equal(llm.BlockImage))
			Expect(req.Messages[0].Content[1].ImageURL).To(Equal("https://example.com/a.png"))

			call := req.Messages[1].Content[0]
			Expect(call.Type).To(Equal(llm.BlockToolUse))
			Expect(call.ToolInput).To(HaveKeyWithValue("city", "Paris"))

			result := req.Messages[2].Content[0]
			Expect(result.Type).To(Equal(llm.BlockToolResult))
			Expect(result.ToolResultID).To(Equal("call_1"))
			Expect(result.ToolOutput).To(Equal("sunny"))
		})

		It("fails on invalid JSON", func() {
			_, err := p.ParseRequest([]byte(`{`))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseResponse", func() {
		It("parses content, reasoning, usage and stop reason", func() {
			resp, err := p.ParseResponse([]byte(`{
				"id": "chatcmpl-123",
				"object": "chat.completion",
				"created": 1700000000,
				"model": "deepseek-reasoner",
				"choices": [{
					"index": 0,
					"message": {"role": "assistant", "content": "42", "reasoning_content": "think hard"},
					"finish_reason": "stop"
				}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12,
					"prompt_tokens_details": {"cached_tokens": 4}}
			}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("deepseek-reasoner"))
			Expect(resp.Message.Content[0].Type).To(Equal(llm.BlockThinking))
			Expect(resp.Message.GetText()).To(Equal("42"))
			Expect(resp.StopReason).To(Equal(llm.StopReasonStop))
			Expect(resp.Usage.TotalTokens).To(Equal(12))
			Expect(resp.Usage.CacheReadInputTokens).To(Equal(4))
			Expect(resp.CreatedAt.Unix()).To(Equal(int64(1700000000)))
		})

		It("handles responses without choices", func() {
			resp, err := p.ParseResponse([]byte(`{"id": "x", "model": "gpt-4", "choices": []}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Done).To(BeTrue())
			Expect(resp.Message.Role).To(Equal(llm.RoleAssistant))
		})
	})
})
