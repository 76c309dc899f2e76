package pipeline_test

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
	"github.com/papercomputeco/switchboard/pkg/sse"
)

var _ = Describe("Framer", func() {
	It("frames chunks as type/id/data events", func() {
		buf := &bytes.Buffer{}
		s := pipeline.Process(context.Background(), pipeline.NewSliceSource(frames("text:hi", "stop")...), scripted{}, stream.New("f1"))

		Expect(pipeline.NewFramer(buf).Copy(s)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"event: text\nid: f1\ndata: {\"text\":\"hi\"}\n\n" +
				"event: stop\nid: f1\ndata: {\"stop_reason\":\"stop\"}\n\n",
		))
	})

	It("renders error chunks with the outbound error payload", func() {
		ev, err := pipeline.Encode(llm.ErrorChunk("f2", &llm.Error{
			Kind:     llm.ErrorKindModelNotFound,
			Provider: "openai",
			Message:  "no such model",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Type).To(Equal("error"))
		Expect(ev.ID).To(Equal("f2"))
		Expect(ev.Data).To(MatchJSON(`{"errorType":"model_not_found","error":"no such model","provider":"openai"}`))
	})

	It("frames tool calls and usage", func() {
		ev, err := pipeline.Encode(llm.ToolCallsChunk("f3", llm.ToolCall{Index: 0, ID: "c", Name: "n", Arguments: "{}", Final: true}))
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(MatchJSON(`{"tool_calls":[{"index":0,"id":"c","name":"n","arguments":"{}","final":true}]}`))

		ev, err = pipeline.Encode(llm.UsageChunk("f3", &llm.Usage{PromptTokens: 1, TotalTokens: 1}))
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(sse.Event{Type: "usage", ID: "f3", Data: `{"prompt_tokens":1,"total_tokens":1}`}))
	})

	It("rejects chunks it cannot frame", func() {
		_, err := pipeline.Encode(llm.Chunk{Kind: "bogus"})
		Expect(err).To(HaveOccurred())
		_, err = pipeline.Encode(llm.Chunk{Kind: llm.ChunkError})
		Expect(err).To(HaveOccurred())
	})
})
