package llm

// ChunkKind identifies what a canonical Chunk carries.
type ChunkKind string

const (
	ChunkText      ChunkKind = "text"
	ChunkReasoning ChunkKind = "reasoning"
	ChunkToolCalls ChunkKind = "tool_calls"
	ChunkUsage     ChunkKind = "usage"
	ChunkStop      ChunkKind = "stop"
	ChunkError     ChunkKind = "error"
)

// Terminal reports whether no further chunk may follow one of this kind.
func (k ChunkKind) Terminal() bool {
	return k == ChunkStop || k == ChunkError
}

// Normalized stop reasons. Dialect specific reasons that have no equivalent
// are passed through unchanged.
const (
	StopReasonStop          = "stop"
	StopReasonLength        = "length"
	StopReasonToolCalls     = "tool_calls"
	StopReasonContentFilter = "content_filter"
)

// Chunk is the dialect independent unit of streamed output. Chunks that share
// a StreamID are strictly ordered and a stop or error chunk is always the last
// one for its stream.
type Chunk struct {
	StreamID string    `json:"id"`
	Kind     ChunkKind `json:"type"`

	// Text holds the fragment for text and reasoning chunks.
	Text string `json:"text,omitempty"`

	// ToolCalls holds the tool-call snapshots (or finalized calls) for
	// tool_calls chunks, in index order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	Usage *Usage `json:"usage,omitempty"`

	StopReason string `json:"stop_reason,omitempty"`

	Err *Error `json:"error,omitempty"`
}

// ToolCall is either a live snapshot of a tool call that is still streaming
// (Final is false and Arguments holds the argument text received so far) or a
// finalized call whose Arguments is validated JSON.
type ToolCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
	Final     bool   `json:"final,omitempty"`
}

func TextChunk(streamID, text string) Chunk {
	return Chunk{StreamID: streamID, Kind: ChunkText, Text: text}
}

func ReasoningChunk(streamID, text string) Chunk {
	return Chunk{StreamID: streamID, Kind: ChunkReasoning, Text: text}
}

func ToolCallsChunk(streamID string, calls ...ToolCall) Chunk {
	return Chunk{StreamID: streamID, Kind: ChunkToolCalls, ToolCalls: calls}
}

func UsageChunk(streamID string, usage *Usage) Chunk {
	return Chunk{StreamID: streamID, Kind: ChunkUsage, Usage: usage}
}

func StopChunk(streamID, reason string) Chunk {
	if reason == "" {
		reason = StopReasonStop
	}
	return Chunk{StreamID: streamID, Kind: ChunkStop, StopReason: reason}
}

func ErrorChunk(streamID string, err *Error) Chunk {
	return Chunk{StreamID: streamID, Kind: ChunkError, Err: err}
}

// Terminal reports whether c ends its stream.
func (c *Chunk) Terminal() bool {
	return c.Kind.Terminal()
}

// NormalizeStopReason maps the stop reasons used across dialects onto the
// canonical set.
func NormalizeStopReason(reason string) string {
	switch reason {
	case "", "stop", "end_turn", "stop_sequence", "STOP", "FINISH_REASON_STOP":
		return StopReasonStop
	case "length", "max_tokens", "MAX_TOKENS", "model_context_window_exceeded":
		return StopReasonLength
	case "tool_calls", "tool_use", "function_call":
		return StopReasonToolCalls
	case "content_filter", "refusal", "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return StopReasonContentFilter
	default:
		return reason
	}
}
