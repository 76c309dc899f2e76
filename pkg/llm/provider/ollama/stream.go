package ollama

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// ParseStreamChunk transforms one NDJSON line of an /api/chat stream.
//
// Content may embed <think> spans, which are split out as reasoning. Tool
// calls arrive whole, so each is emitted already finalized. The done line
// carries the metrics and closes the stream.
func (o *provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 || sc.Terminated() {
		return nil, nil
	}

	var resp ollamaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding ollama chunk: %w", err))
	}
	if resp.Error != "" {
		return nil, &StreamError{Message: resp.Error}
	}

	var out []llm.Chunk
	if resp.Message.Thinking != "" {
		out = append(out, llm.ReasoningChunk(sc.StreamID, resp.Message.Thinking))
	}
	if resp.Message.Content != "" {
		out = append(out, sc.SegmentChunks(resp.Message.Content)...)
	}

	if len(resp.Message.ToolCalls) > 0 {
		calls := make([]llm.ToolCall, 0, len(resp.Message.ToolCalls))
		for _, tc := range resp.Message.ToolCalls {
			index := sc.NextToolIndex()
			sc.AppendToolCall(index, tc.ID, tc.Function.Name, wire.ToolArguments(tc.Function.Arguments))
			call, err := sc.FinalizeToolCall(index)
			if err != nil {
				return out, wire.DecodeError(sc.Provider, err)
			}
			calls = append(calls, call)
		}
		out = append(out, llm.ToolCallsChunk(sc.StreamID, calls...))
	}

	if !resp.Done {
		return out, nil
	}

	for _, seg := range sc.FlushCarry() {
		out = append(out, seg.Chunk(sc.StreamID))
	}
	if usage := convertUsage(&resp); usage != nil {
		out = append(out, llm.UsageChunk(sc.StreamID, sc.AddUsage(usage)))
	}

	stop, err := sc.Stop(resp.DoneReason)
	return append(out, stop...), err
}
