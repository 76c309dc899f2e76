package replaycmder_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	replaycmder "github.com/papercomputeco/switchboard/cmd/switchboard/replay"
	"github.com/papercomputeco/switchboard/pkg/llm"
)

const openAICapture = `data: {"choices":[{"index":0,"delta":{"content":"<thi"}}]}

data: {"choices":[{"index":0,"delta":{"content":"nk>plan</think>answer"}}]}

data: [DONE]

`

const ollamaCapture = `{"model":"qwen3","message":{"role":"assistant","content":"Hi"},"done":false}
{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":2}
`

func decodeLines(out string) []llm.Chunk {
	var chunks []llm.Chunk
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var c llm.Chunk
		ExpectWithOffset(1, json.Unmarshal(scanner.Bytes(), &c)).To(Succeed())
		chunks = append(chunks, c)
	}
	return chunks
}

var _ = Describe("replay command", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	capture := func(name, content string) string {
		path := filepath.Join(dir, name)
		ExpectWithOffset(1, os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	execute := func(stdin string, args ...string) error {
		cmd := replaycmder.NewReplayCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	It("frames canonical chunks as SSE by default", func() {
		path := capture("openai.sse", openAICapture)
		Expect(execute("", path, "--dialect", "openai")).To(Succeed())

		output := out.String()
		Expect(output).To(ContainSubstring("event: reasoning\n"))
		Expect(output).To(ContainSubstring(`data: {"text":"answer"}`))
		Expect(strings.Index(output, "event: stop\n")).To(BeNumerically(">", strings.Index(output, "event: text\n")))
	})

	It("writes one JSON chunk per line", func() {
		path := capture("openai.sse", openAICapture)
		Expect(execute("", path, "--output", "json")).To(Succeed())

		chunks := decodeLines(out.String())
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0].Kind).To(Equal(llm.ChunkReasoning))
		Expect(chunks[0].Text).To(Equal("plan"))
		Expect(chunks[1].Text).To(Equal("answer"))
		Expect(chunks[2].StopReason).To(Equal("stop"))
		Expect(chunks[0].StreamID).To(Equal(chunks[2].StreamID))
	})

	It("reads ollama NDJSON from stdin", func() {
		Expect(execute(ollamaCapture, "-", "--dialect", "ollama", "--output", "json")).To(Succeed())

		chunks := decodeLines(out.String())
		Expect(chunks).NotTo(BeEmpty())
		Expect(chunks[0]).To(Equal(llm.TextChunk(chunks[0].StreamID, "Hi")))
		Expect(chunks[len(chunks)-1].Kind).To(Equal(llm.ChunkStop))
	})

	It("ends a truncated capture with a stream_decode error", func() {
		truncated := `data: {"choices":[{"index":0,"delta":{"content":"par"}}]}` + "\n\n"
		Expect(execute(truncated, "-", "--output", "json")).To(Succeed())

		chunks := decodeLines(out.String())
		last := chunks[len(chunks)-1]
		Expect(last.Kind).To(Equal(llm.ChunkError))
		Expect(last.Err.Kind).To(Equal(llm.ErrorKindStreamDecode))
	})

	It("renders styled output", func() {
		path := capture("openai.sse", openAICapture)
		Expect(execute("", path, "--output", "pretty")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("plan"))
		Expect(out.String()).To(ContainSubstring("answer"))
		Expect(out.String()).To(ContainSubstring("stop: stop"))
	})

	It("rejects unknown dialects", func() {
		path := capture("openai.sse", openAICapture)
		Expect(execute("", path, "--dialect", "morse")).To(MatchError(ContainSubstring("unknown dialect")))
	})

	It("rejects unknown framings", func() {
		path := capture("openai.sse", openAICapture)
		Expect(execute("", path, "--framing", "carrier-pigeon")).To(HaveOccurred())
	})

	It("fails when the capture does not exist", func() {
		Expect(execute("", filepath.Join(dir, "missing.sse"))).To(HaveOccurred())
	})

	Describe("DefaultFraming", func() {
		It("follows the dialect", func() {
			Expect(replaycmder.DefaultFraming("ollama")).To(Equal(replaycmder.FramingNDJSON))
			Expect(replaycmder.DefaultFraming("bedrock")).To(Equal(replaycmder.FramingEventStream))
			Expect(replaycmder.DefaultFraming("anthropic")).To(Equal(replaycmder.FramingSSE))
		})
	})
})
