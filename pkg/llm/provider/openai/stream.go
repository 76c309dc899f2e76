package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

var doneSentinel = []byte("[DONE]")

// ParseStreamChunk transforms one SSE data payload of a chat.completion.chunk
// stream.
//
// A finish_reason only records the pending stop: providers that honor
// stream_options.include_usage send the usage frame after it. The stop chunk
// is emitted on [DONE], or by the pipeline when the stream ends without one.
func (o *provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if bytes.Equal(data, doneSentinel) {
		return sc.Stop("")
	}
	if sc.Terminated() {
		return nil, nil
	}

	var chunk openaiChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding openai chunk: %w", err))
	}
	if chunk.Error != nil {
		return nil, &StreamError{Body: *chunk.Error}
	}

	var out []llm.Chunk
	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}

		delta := choice.Delta
		if reasoning := firstNonEmpty(delta.ReasoningContent, delta.Reasoning); reasoning != "" {
			out = append(out, llm.ReasoningChunk(sc.StreamID, reasoning))
		}
		if delta.Content != nil {
			out = append(out, sc.SegmentChunks(*delta.Content)...)
		}

		if len(delta.ToolCalls) > 0 {
			snapshots := make([]llm.ToolCall, 0, len(delta.ToolCalls))
			for i, tc := range delta.ToolCalls {
				index := i
				if tc.Index != nil {
					index = *tc.Index
				}
				snapshots = append(snapshots, sc.AppendToolCall(index, tc.ID, tc.Function.Name, tc.Function.Arguments))
			}
			out = append(out, llm.ToolCallsChunk(sc.StreamID, snapshots...))
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			sc.SetPendingStop(*choice.FinishReason)
			calls, err := sc.FinalizeToolCalls()
			if err != nil {
				return out, wire.DecodeError(sc.Provider, err)
			}
			if len(calls) > 0 {
				out = append(out, llm.ToolCallsChunk(sc.StreamID, calls...))
			}
		}
	}

	if usage := convertUsage(chunk.Usage); usage != nil {
		out = append(out, llm.UsageChunk(sc.StreamID, sc.AddUsage(usage)))
	}

	return out, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
