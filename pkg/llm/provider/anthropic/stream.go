package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// TransformEvent transforms the data payload of one Messages API stream
// event.
//
// Input token counts from message_start are folded into the context and
// reported together with the output tokens of message_delta. A tool_use
// block is finalized by its content_block_stop; message_stop ends the stream.
func TransformEvent(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 || sc.Terminated() {
		return nil, nil
	}

	var ev anthropicEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding anthropic event: %w", err))
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			sc.AddUsage(convertUsage(ev.Message.Usage))
		}
		return nil, nil

	case "content_block_start":
		return blockStart(ev, sc), nil

	case "content_block_delta":
		return blockDelta(ev, sc), nil

	case "content_block_stop":
		if !sc.HasToolCall(ev.Index) {
			return nil, nil
		}
		call, err := sc.FinalizeToolCall(ev.Index)
		if err != nil {
			return nil, wire.DecodeError(sc.Provider, err)
		}
		return []llm.Chunk{llm.ToolCallsChunk(sc.StreamID, call)}, nil

	case "message_delta":
		var out []llm.Chunk
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			sc.SetPendingStop(ev.Delta.StopReason)
		}
		if usage := convertUsage(ev.Usage); usage != nil {
			// message_delta only carries the output side; keep the prompt
			// counts from message_start.
			usage.TotalTokens = 0
			out = append(out, llm.UsageChunk(sc.StreamID, sc.AddUsage(usage)))
		}
		return out, nil

	case "message_stop":
		return sc.Stop("")

	case "error":
		body := anthropicErrorBody{Type: "api_error"}
		if ev.Error != nil {
			body = *ev.Error
		}
		return nil, &StreamError{Body: body}

	default:
		// ping and event types added after this was written
		return nil, nil
	}
}

func blockStart(ev anthropicEvent, sc *stream.Context) []llm.Chunk {
	block := ev.ContentBlock
	if block == nil {
		return nil
	}

	switch block.Type {
	case "tool_use", "server_tool_use":
		snap := sc.AppendToolCall(ev.Index, block.ID, block.Name, "")
		return []llm.Chunk{llm.ToolCallsChunk(sc.StreamID, snap)}
	case "text":
		if block.Text != "" {
			return []llm.Chunk{llm.TextChunk(sc.StreamID, block.Text)}
		}
	case "thinking":
		if block.Thinking != "" {
			return []llm.Chunk{llm.ReasoningChunk(sc.StreamID, block.Thinking)}
		}
	}
	return nil
}

func blockDelta(ev anthropicEvent, sc *stream.Context) []llm.Chunk {
	delta := ev.Delta
	if delta == nil {
		return nil
	}

	switch delta.Type {
	case "text_delta":
		if delta.Text == "" {
			return nil
		}
		return []llm.Chunk{llm.TextChunk(sc.StreamID, delta.Text)}
	case "thinking_delta":
		if delta.Thinking == "" {
			return nil
		}
		return []llm.Chunk{llm.ReasoningChunk(sc.StreamID, delta.Thinking)}
	case "input_json_delta":
		snap := sc.AppendToolCall(ev.Index, "", "", delta.PartialJSON)
		return []llm.Chunk{llm.ToolCallsChunk(sc.StreamID, snap)}
	default:
		// signature_delta and citations carry nothing canonical
		return nil
	}
}
