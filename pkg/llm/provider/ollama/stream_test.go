package ollama_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/ollama"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

func run(lines ...string) ([]llm.Chunk, error) {
	p := ollama.New()
	sc := stream.New("s1", stream.WithProvider("ollama"))
	var out []llm.Chunk
	for _, line := range lines {
		chunks, err := p.ParseStreamChunk([]byte(line), sc)
		out = append(out, chunks...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

var _ = Describe("Ollama stream", func() {
	It("splits inline think spans across lines and closes on done", func() {
		chunks, err := run(
			`{"model":"qwen3","message":{"role":"assistant","content":"<thi"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"nk>hmm</think>"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","total_duration":900,"prompt_eval_count":10,"eval_count":5}`,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{
			llm.ReasoningChunk("s1", "hmm"),
			llm.TextChunk("s1", "Hello"),
			llm.UsageChunk("s1", &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, TotalDurationNs: 900}),
			llm.StopChunk("s1", llm.StopReasonStop),
		}))
	})

	It("emits the native thinking field as reasoning", func() {
		chunks, err := run(`{"message":{"role":"assistant","content":"","thinking":"step one"},"done":false}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{llm.ReasoningChunk("s1", "step one")}))
	})

	It("emits whole tool calls with derived ids", func() {
		chunks, err := run(
			`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Tokyo"}}},{"function":{"name":"get_time","arguments":{}}}]},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))

		calls := chunks[0].ToolCalls
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].Index).To(Equal(0))
		Expect(calls[0].ID).To(Equal(stream.DeriveToolCallID(0, "get_weather")))
		Expect(calls[0].Arguments).To(MatchJSON(`{"city":"Tokyo"}`))
		Expect(calls[0].Final).To(BeTrue())
		Expect(calls[1].Index).To(Equal(1))
		Expect(calls[1].Arguments).To(Equal("{}"))

		Expect(chunks[1]).To(Equal(llm.StopChunk("s1", "stop")))
	})

	It("maps done_reason length", func() {
		chunks, err := run(`{"message":{"role":"assistant","content":"abc"},"done":true,"done_reason":"length"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks[len(chunks)-1]).To(Equal(llm.StopChunk("s1", llm.StopReasonLength)))
	})

	It("turns error lines into errors", func() {
		_, err := run(`{"error":"model \"llama9\" not found, try pulling it first"}`)

		var streamErr *ollama.StreamError
		Expect(errors.As(err, &streamErr)).To(BeTrue())

		e := ollama.New().MapError(err, "local")
		Expect(e.Kind).To(Equal(llm.ErrorKindModelNotFound))
		Expect(e.Provider).To(Equal("local"))
	})

	It("ignores lines after done", func() {
		chunks, err := run(
			`{"message":{"role":"assistant","content":""},"done":true}`,
			`{"message":{"role":"assistant","content":"late"},"done":false}`,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{llm.StopChunk("s1", "stop")}))
	})
})

var _ = Describe("Ollama MapError", func() {
	DescribeTable("classifies HTTP failures",
		func(status int, body string, want llm.ErrorKind) {
			e := ollama.New().MapError(&llm.HTTPError{StatusCode: status, Body: []byte(body)}, "ollama")
			Expect(e.Kind).To(Equal(want))
		},
		Entry("missing model", 404, `{"error":"model 'llama9' not found"}`, llm.ErrorKindModelNotFound),
		Entry("no tools", 400, `{"error":"registry.ollama.ai/library/gemma:2b does not support tools"}`, llm.ErrorKindRequestMalformed),
		Entry("memory", 500, `{"error":"model requires more system memory (12 GiB) than is available (8 GiB)"}`, llm.ErrorKindProviderUnavailable),
		Entry("plain 500", 500, `{"error":"boom"}`, llm.ErrorKindProviderUnavailable),
	)

	It("classifies connection failures as unavailable", func() {
		e := ollama.New().MapError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), "ollama")
		Expect(e.Kind).To(Equal(llm.ErrorKindProviderUnavailable))
	})
})
