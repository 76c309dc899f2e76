package besteffort

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/errmap"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

var (
	streamReasoningPaths = []string{
		"choices.0.delta.reasoning_content", "choices.0.delta.reasoning",
		"message.thinking", "delta.thinking",
	}
	streamTextPaths = []string{
		"choices.0.delta.content", "choices.0.text", "message.content", "delta.text",
		"candidates.0.content.parts.0.text", "token.text", "response", "text",
	}
	streamStopPaths = []string{
		"choices.0.finish_reason", "delta.stop_reason", "done_reason",
		"candidates.0.finishReason", "finish_reason", "stop_reason",
		"details.finish_reason",
	}
)

// ParseStreamChunk probes one stream element for text, reasoning, usage and a
// stop reason. A stop reason is held as pending until the element says the
// stream is over ([DONE], done: true, message_stop) or the source ends.
func (b *provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 || sc.Terminated() {
		return nil, nil
	}
	if bytes.Equal(data, []byte("[DONE]")) {
		return sc.Stop("")
	}
	if !gjson.ValidBytes(data) {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding stream element: invalid JSON"))
	}

	root := gjson.ParseBytes(data)
	if e := root.Get("error"); e.Exists() && e.Type != gjson.Null {
		return nil, &StreamError{Body: append([]byte(nil), data...)}
	}

	var out []llm.Chunk
	if reasoning := firstString(root, streamReasoningPaths...); reasoning != "" {
		out = append(out, llm.ReasoningChunk(sc.StreamID, reasoning))
	}
	if text := firstString(root, streamTextPaths...); text != "" {
		out = append(out, sc.SegmentChunks(text)...)
	}

	if usage := extractUsage(root); usage != nil {
		// Partial reports (output tokens only) are merged; let the running
		// total be recomputed unless the element states one.
		if !first(root, "usage.total_tokens", "usageMetadata.totalTokenCount").Exists() {
			usage.TotalTokens = 0
		}
		out = append(out, llm.UsageChunk(sc.StreamID, sc.AddUsage(usage)))
	}

	if reason := firstString(root, streamStopPaths...); reason != "" {
		sc.SetPendingStop(reason)
	}

	if root.Get("done").Bool() || root.Get("type").String() == "message_stop" {
		stop, err := sc.Stop("")
		return append(out, stop...), err
	}
	return out, nil
}

// StreamError is an element carrying an error object.
type StreamError struct {
	Body []byte
}

func (e *StreamError) Error() string {
	if msg := errmap.Message(e.Body); msg != "" {
		return "stream error: " + msg
	}
	return "stream error: " + string(e.Body)
}
