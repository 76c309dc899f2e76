package bedrock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/switchboard/pkg/llm/provider/internal/wire"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// ParseStreamChunk transforms one ResponseStream event. The event-stream
// source presents each message as its union member ({"chunk": {...}} or
// {"<exception>": {...}}); bare {"bytes": ...} payloads and already decoded
// Messages API events are accepted too.
func (p *Provider) ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 || sc.Terminated() {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding bedrock event: invalid JSON"))
	}

	if gjson.GetBytes(data, "type").Exists() {
		return anthropic.TransformEvent(data, sc)
	}
	if gjson.GetBytes(data, "bytes").Exists() {
		return transformChunk(data, sc)
	}

	var ev responseStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding bedrock event: %w", err))
	}
	if raw, ok := ev["chunk"]; ok {
		return transformChunk(raw, sc)
	}

	keys := make([]string, 0, len(ev))
	for key := range ev {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	slices.Sort(keys)

	var body exceptionBody
	_ = json.Unmarshal(ev[keys[0]], &body)
	return nil, &StreamError{Type: keys[0], Message: body.Message}
}

func transformChunk(raw []byte, sc *stream.Context) ([]llm.Chunk, error) {
	var part payloadPart
	if err := json.Unmarshal(raw, &part); err != nil {
		return nil, wire.DecodeError(sc.Provider, fmt.Errorf("decoding bedrock chunk: %w", err))
	}
	return anthropic.TransformEvent(part.Bytes, sc)
}
