package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/pipeline"
)

var _ = Describe("FromResponse", func() {
	It("replays a complete response as the canonical sequence", func() {
		resp := &llm.ChatResponse{
			Message: llm.Message{
				Role: llm.RoleAssistant,
				Content: []llm.ContentBlock{
					{Type: llm.BlockThinking, Text: "hmm"},
					{Type: llm.BlockText, Text: "Let me check."},
					{Type: llm.BlockToolUse, ToolName: "lookup", ToolInput: map[string]any{"q": "go"}},
				},
			},
			Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		}

		chunks, err := pipeline.Collect(pipeline.FromResponse(stream.New("r1"), resp))
		Expect(err).NotTo(HaveOccurred())
		Expect(kinds(chunks)).To(Equal([]llm.ChunkKind{
			llm.ChunkReasoning, llm.ChunkText, llm.ChunkToolCalls, llm.ChunkUsage, llm.ChunkStop,
		}))

		call := chunks[2].ToolCalls[0]
		Expect(call.ID).To(Equal(stream.DeriveToolCallID(0, "lookup")))
		Expect(call.Arguments).To(MatchJSON(`{"q":"go"}`))
		Expect(call.Final).To(BeTrue())
		Expect(chunks[4].StopReason).To(Equal(llm.StopReasonToolCalls))
	})

	It("splits inline reasoning markers in text", func() {
		resp := &llm.ChatResponse{
			Message:    llm.NewTextMessage(llm.RoleAssistant, "<think>why</think>because"),
			StopReason: "length",
		}

		chunks, err := pipeline.Collect(pipeline.FromResponse(stream.New("r2"), resp))
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{
			llm.ReasoningChunk("r2", "why"),
			llm.TextChunk("r2", "because"),
			llm.StopChunk("r2", llm.StopReasonLength),
		}))
	})

	It("produces a lone stop chunk for a nil response", func() {
		chunks, err := pipeline.Collect(pipeline.FromResponse(stream.New("r3"), nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]llm.Chunk{llm.StopChunk("r3", llm.StopReasonStop)}))
	})
})
