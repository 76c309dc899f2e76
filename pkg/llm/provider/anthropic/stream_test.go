package anthropic_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

func transform(events ...string) ([]llm.Chunk, error) {
	sc := stream.New("s1", stream.WithProvider("anthropic"))
	var out []llm.Chunk
	for _, ev := range events {
		chunks, err := anthropic.TransformEvent([]byte(ev), sc)
		out = append(out, chunks...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

var _ = Describe("Anthropic stream events", func() {
	It("maps a thinking + text + tool_use stream", func() {
		chunks, err := transform(
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5","usage":{"input_tokens":25,"output_tokens":1}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me check"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"abc"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"ping"}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Okay."}}`,
			`{"type":"content_block_stop","index":1}`,
			`{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"weather","input":{}}}`,
			`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":""}}`,
			`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
			`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`,
			`{"type":"content_block_stop","index":2}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":40}}`,
			`{"type":"message_stop"}`,
		)
		Expect(err).NotTo(HaveOccurred())

		kinds := make([]llm.ChunkKind, 0, len(chunks))
		for _, c := range chunks {
			kinds = append(kinds, c.Kind)
		}
		Expect(kinds).To(Equal([]llm.ChunkKind{
			llm.ChunkReasoning,
			llm.ChunkText,
			llm.ChunkToolCalls, // start
			llm.ChunkToolCalls, // empty delta
			llm.ChunkToolCalls,
			llm.ChunkToolCalls,
			llm.ChunkToolCalls, // finalized by content_block_stop
			llm.ChunkUsage,
			llm.ChunkStop,
		}))

		Expect(chunks[0].Text).To(Equal("Let me check"))
		Expect(chunks[1].Text).To(Equal("Okay."))
		Expect(chunks[2].ToolCalls[0].ID).To(Equal("toolu_1"))
		Expect(chunks[2].ToolCalls[0].Name).To(Equal("weather"))

		final := chunks[6].ToolCalls[0]
		Expect(final.Final).To(BeTrue())
		Expect(final.Index).To(Equal(2))
		Expect(final.Arguments).To(MatchJSON(`{"city":"Oslo"}`))

		Expect(chunks[7].Usage).To(Equal(&llm.Usage{PromptTokens: 25, CompletionTokens: 40, TotalTokens: 65}))
		Expect(chunks[8]).To(Equal(llm.StopChunk("s1", llm.StopReasonToolCalls)))
	})

	It("returns an error for in-band error events", func() {
		_, err := transform(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		Expect(err).To(HaveOccurred())

		e := anthropic.MapError(err, "anthropic")
		Expect(e.Kind).To(Equal(llm.ErrorKindProviderUnavailable))
		Expect(e.Message).To(Equal("Overloaded"))
	})

	It("reports malformed events", func() {
		_, err := transform(`{"type":`)
		e, ok := llm.AsError(err)
		Expect(ok).To(BeTrue())
		Expect(e.Kind).To(Equal(llm.ErrorKindStreamDecode))
	})

	It("ignores events after message_stop", func() {
		chunks, err := transform(
			`{"type":"message_stop"}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"late"}}`,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{llm.StopChunk("s1", "stop")}))
	})
})

var _ = Describe("Anthropic MapError", func() {
	DescribeTable("classifies error bodies",
		func(status int, body string, want llm.ErrorKind) {
			e := anthropic.New().MapError(&llm.HTTPError{StatusCode: status, Body: []byte(body)}, "anthropic")
			Expect(e.Kind).To(Equal(want))
		},
		Entry("auth", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, llm.ErrorKindInvalidCredentials),
		Entry("permission", 403, `{"type":"error","error":{"type":"permission_error","message":"no"}}`, llm.ErrorKindPermissionDenied),
		Entry("not found", 404, `{"type":"error","error":{"type":"not_found_error","message":"model: claude-9"}}`, llm.ErrorKindModelNotFound),
		Entry("rate limit", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, llm.ErrorKindQuotaExceeded),
		Entry("prompt too long", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`, llm.ErrorKindContextWindowExceeded),
		Entry("credit", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low"}}`, llm.ErrorKindInsufficientQuota),
		Entry("malformed", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"messages: field required"}}`, llm.ErrorKindRequestMalformed),
		Entry("overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, llm.ErrorKindProviderUnavailable),
	)
})
