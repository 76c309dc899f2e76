package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// ParseStreamChunk transforms one element of a streamGenerateContent?alt=sse
// stream. Every element is a complete response object; the one carrying a
// finishReason also carries the final usage and ends the stream.
func (g *provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 || sc.Terminated() {
		return nil, nil
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding gemini chunk: %w", err))
	}
	if resp.Error != nil {
		return nil, &StreamError{Body: *resp.Error}
	}

	// Usage metadata is cumulative and repeated on most elements; only the
	// final figure is reported.
	usage := convertUsage(resp.UsageMetadata)

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return finish(sc, usage, llm.StopReasonContentFilter)
		}
		sc.AddUsage(usage)
		return nil, nil
	}

	var out []llm.Chunk
	for _, candidate := range resp.Candidates {
		if candidate.Index != 0 {
			continue
		}

		var calls []llm.ToolCall
		for _, part := range candidate.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				index := sc.NextToolIndex()
				sc.AppendToolCall(index, part.FunctionCall.ID, part.FunctionCall.Name, wire.ToolArguments(part.FunctionCall.Args))
				call, err := sc.FinalizeToolCall(index)
				if err != nil {
					return out, wire.DecodeError(sc.Provider, err)
				}
				calls = append(calls, call)
			case part.Thought && part.Text != "":
				out = append(out, llm.ReasoningChunk(sc.StreamID, part.Text))
			case part.Text != "":
				out = append(out, llm.TextChunk(sc.StreamID, part.Text))
			}
		}
		if len(calls) > 0 {
			out = append(out, llm.ToolCallsChunk(sc.StreamID, calls...))
		}

		if candidate.FinishReason != "" {
			rest, err := finish(sc, usage, stopReason(candidate.FinishReason, sc.ToolCallCount() > 0))
			return append(out, rest...), err
		}
	}

	sc.AddUsage(usage)
	return out, nil
}

func finish(sc *stream.Context, usage *llm.Usage, reason string) ([]llm.Chunk, error) {
	var out []llm.Chunk
	if usage != nil {
		out = append(out, llm.UsageChunk(sc.StreamID, sc.AddUsage(usage)))
	} else if u := sc.Usage(); u != nil {
		snapshot := *u
		out = append(out, llm.UsageChunk(sc.StreamID, &snapshot))
	}
	stop, err := sc.Stop(reason)
	return append(out, stop...), err
}
