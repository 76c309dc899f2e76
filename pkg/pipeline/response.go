package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// FromResponse expresses a complete (non-streamed) response as the same
// canonical sequence a stream would have produced: reasoning and text in
// content order, then the finalized tool calls, usage and the stop chunk.
func FromResponse(sc *stream.Context, resp *llm.ChatResponse, opts ...Option) *Stream {
	var chunks []llm.Chunk
	reason := ""

	if resp != nil {
		reason = resp.StopReason
		for _, block := range resp.Message.Content {
			switch block.Type {
			case llm.BlockThinking:
				if block.Text != "" {
					chunks = append(chunks, llm.ReasoningChunk(sc.StreamID, block.Text))
				}
			case llm.BlockText:
				chunks = append(chunks, sc.SegmentChunks(block.Text)...)
			case llm.BlockToolUse:
				args := "{}"
				if len(block.ToolInput) > 0 {
					if b, err := json.Marshal(block.ToolInput); err == nil {
						args = string(b)
					}
				}
				sc.AppendToolCall(sc.NextToolIndex(), block.ToolUseID, block.ToolName, args)
			}
		}
		for _, seg := range sc.FlushCarry() {
			chunks = append(chunks, seg.Chunk(sc.StreamID))
		}
		// Arguments were marshaled above, so finalizing cannot fail.
		if calls, _ := sc.FinalizeToolCalls(); len(calls) > 0 {
			chunks = append(chunks, llm.ToolCallsChunk(sc.StreamID, calls...))
		}
		if resp.Usage != nil {
			chunks = append(chunks, llm.UsageChunk(sc.StreamID, sc.AddUsage(resp.Usage)))
		}
	}
	if reason == "" && sc.ToolCallCount() > 0 {
		reason = llm.StopReasonToolCalls
	}

	stop, _ := sc.Stop(reason)
	chunks = append(chunks, stop...)

	s := &Stream{
		ctx:       context.Background(),
		sc:        sc,
		pending:   chunks,
		exhausted: true,
		opts:      options{logger: zap.NewNop()},
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Collect drains s and closes it. Error chunks are part of the returned
// sequence; the error is the one reported by Err.
func Collect(s *Stream) ([]llm.Chunk, error) {
	var out []llm.Chunk
	for s.Next() {
		out = append(out, s.Chunk())
	}
	err := s.Err()
	_ = s.Close()
	return out, err
}
