package pipeline_test

import (
	"context"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/ollama"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/openai"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
)

const openAIStream = `data: {"choices":[{"index":0,"delta":{"role":"assistant","content":"<thi"}}]}

data: {"choices":[{"index":0,"delta":{"content":"nk>plan</think>Hello"}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"lookup","arguments":"{\"a\":"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: {"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}

data: [DONE]

`

var _ = Describe("Process", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	run := func() []llm.Chunk {
		src := pipeline.NewSSESource(strings.NewReader(openAIStream))
		s := pipeline.Process(ctx, src, openai.New(), stream.New("s1", stream.WithProvider("openai")))
		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		return chunks
	}

	It("normalizes an OpenAI SSE stream in order", func() {
		chunks := run()
		Expect(kinds(chunks)).To(Equal([]llm.ChunkKind{
			llm.ChunkReasoning, llm.ChunkText,
			llm.ChunkToolCalls, llm.ChunkToolCalls, llm.ChunkToolCalls,
			llm.ChunkUsage, llm.ChunkStop,
		}))
		Expect(chunks[0].Text).To(Equal("plan"))
		Expect(chunks[1].Text).To(Equal("Hello"))

		final := chunks[4].ToolCalls[0]
		Expect(final.Final).To(BeTrue())
		Expect(final.ID).To(Equal("call_1"))
		Expect(final.Arguments).To(MatchJSON(`{"a":1}`))

		Expect(chunks[5].Usage.TotalTokens).To(Equal(12))
		Expect(chunks[6].StopReason).To(Equal(llm.StopReasonToolCalls))
	})

	It("is deterministic across fresh contexts", func() {
		Expect(run()).To(Equal(run()))
	})

	It("normalizes an Ollama NDJSON stream", func() {
		body := `{"message":{"role":"assistant","content":"Hi"},"done":false}` + "\n\n" +
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"length","prompt_eval_count":2,"eval_count":3}` + "\n"
		s := pipeline.Process(ctx, pipeline.NewNDJSONSource(strings.NewReader(body)), ollama.New(), stream.New("s2"))

		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{
			llm.TextChunk("s2", "Hi"),
			llm.UsageChunk("s2", &llm.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}),
			llm.StopChunk("s2", llm.StopReasonLength),
		}))
	})

	It("stops pulling after the terminal chunk and closes the source", func() {
		src := &countingSource{Source: pipeline.NewSliceSource(frames("text:a", "stop", "text:never")...)}
		s := pipeline.Process(ctx, src, scripted{}, stream.New("s3"))

		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{llm.TextChunk("s3", "a"), llm.StopChunk("s3", llm.StopReasonStop)}))
		Expect(src.pulls).To(Equal(2))
		Expect(src.closed.Load()).To(BeTrue())
	})

	It("emits one terminal error chunk when the transformer fails", func() {
		src := &countingSource{Source: pipeline.NewSliceSource(frames("text:a", "fail", "text:never")...)}
		s := pipeline.Process(ctx, src, scripted{}, stream.New("s4", stream.WithProvider("acme")))

		chunks, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(kinds(chunks)).To(Equal([]llm.ChunkKind{llm.ChunkText, llm.ChunkError}))
		Expect(chunks[1].Err.Kind).To(Equal(llm.ErrorKindQuotaExceeded))
		Expect(chunks[1].Err.Provider).To(Equal("acme"))
		Expect(src.pulls).To(Equal(2))
	})

	It("turns a transformer panic into a stream_decode error chunk", func() {
		s := pipeline.Process(ctx, pipeline.NewSliceSource(frames("panic")...), scripted{}, stream.New("s5"))

		chunks, _ := pipeline.Collect(s)
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Err.Kind).To(Equal(llm.ErrorKindStreamDecode))
	})

	It("reports a stream that ends without a terminal signal as stream_decode", func() {
		s := pipeline.Process(ctx, pipeline.NewSliceSource(frames("text:a")...), scripted{}, stream.New("s6"))

		chunks, _ := pipeline.Collect(s)
		Expect(kinds(chunks)).To(Equal([]llm.ChunkKind{llm.ChunkText, llm.ChunkError}))
		Expect(chunks[1].Err.Kind).To(Equal(llm.ErrorKindStreamDecode))
	})

	It("runs terminal hooks once with the terminal chunk", func() {
		var seen []llm.Chunk
		hook := func(sc *stream.Context, c llm.Chunk) { seen = append(seen, c) }
		s := pipeline.Process(ctx, pipeline.NewSliceSource(frames("stop")...), scripted{}, stream.New("s7"), pipeline.OnTerminal(hook))

		_, err := pipeline.Collect(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]llm.Chunk{llm.StopChunk("s7", llm.StopReasonStop)}))
	})

	Context("when canceled", func() {
		It("delivers nothing after the cancellation point and synthesizes no stop", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			src := &countingSource{Source: pipeline.NewSliceSource(frames("text:1", "text:2", "text:3", "stop")...)}
			s := pipeline.Process(cctx, src, scripted{}, stream.New("s8"))

			var got []llm.Chunk
			for s.Next() {
				got = append(got, s.Chunk())
				if len(got) == 2 {
					cancel()
				}
			}

			Expect(got).To(HaveLen(2))
			Expect(s.Err()).To(MatchError(context.Canceled))
			Expect(src.closed.Load()).To(BeTrue())
			Expect(s.Context().Emitted()).To(Equal(2))
		})

		It("unblocks a pending upstream read", func() {
			cctx, cancel := context.WithCancel(ctx)
			pr, pw := io.Pipe()
			defer pw.Close()

			s := pipeline.Process(cctx, pipeline.NewNDJSONSource(pr), ollama.New(), stream.New("s9"))

			go func() {
				defer GinkgoRecover()
				_, _ = pw.Write([]byte(`{"message":{"content":"Hi"},"done":false}` + "\n"))
			}()
			Expect(s.Next()).To(BeTrue())
			Expect(s.Chunk().Text).To(Equal("Hi"))

			// the next read blocks until cancellation closes the pipe
			time.AfterFunc(20*time.Millisecond, cancel)
			Expect(s.Next()).To(BeFalse())
			Expect(s.Err()).To(MatchError(context.Canceled))
		})
	})

	It("reports early Close as ErrStreamClosed", func() {
		s := pipeline.Process(ctx, pipeline.NewSliceSource(frames("text:a", "stop")...), scripted{}, stream.New("s10"))
		Expect(s.Next()).To(BeTrue())
		Expect(s.Close()).To(Succeed())
		Expect(s.Next()).To(BeFalse())
		Expect(s.Err()).To(MatchError(pipeline.ErrStreamClosed))
	})
})
