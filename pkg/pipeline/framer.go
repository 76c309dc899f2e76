package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/sse"
)

// Framer writes canonical chunks as SSE events: the event type is the chunk
// kind, the id is the stream id and the data is a JSON object whose shape
// depends on the kind.
type Framer struct {
	w *sse.Writer
}

// NewFramer frames onto w, flushing after every event when w supports it.
func NewFramer(w io.Writer) *Framer {
	return &Framer{w: sse.NewWriter(w)}
}

type textFrame struct {
	Text string `json:"text"`
}

type toolCallsFrame struct {
	ToolCalls []llm.ToolCall `json:"tool_calls"`
}

type stopFrame struct {
	StopReason string `json:"stop_reason"`
}

// Encode returns the SSE event for c.
func Encode(c llm.Chunk) (sse.Event, error) {
	var payload any
	switch c.Kind {
	case llm.ChunkText, llm.ChunkReasoning:
		payload = textFrame{Text: c.Text}
	case llm.ChunkToolCalls:
		payload = toolCallsFrame{ToolCalls: c.ToolCalls}
	case llm.ChunkUsage:
		payload = c.Usage
	case llm.ChunkStop:
		payload = stopFrame{StopReason: c.StopReason}
	case llm.ChunkError:
		if c.Err == nil {
			return sse.Event{}, fmt.Errorf("error chunk without error")
		}
		payload = c.Err.Payload()
	default:
		return sse.Event{}, fmt.Errorf("unknown chunk kind %q", c.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return sse.Event{}, fmt.Errorf("encoding %s chunk: %w", c.Kind, err)
	}
	return sse.Event{Type: string(c.Kind), ID: c.StreamID, Data: string(data)}, nil
}

// WriteChunk frames one chunk.
func (f *Framer) WriteChunk(c llm.Chunk) error {
	ev, err := Encode(c)
	if err != nil {
		return err
	}
	return f.w.Write(ev)
}

// Copy frames every chunk of s until it ends and returns s.Err or the first
// write error. s is closed on return.
func (f *Framer) Copy(s *Stream) error {
	defer s.Close()
	for s.Next() {
		if err := f.WriteChunk(s.Chunk()); err != nil {
			return err
		}
	}
	return s.Err()
}
