// Package wire holds encoding helpers shared by the dialect packages.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// MergeExtra copies the allowed keys of extra into a JSON object body without
// overwriting keys the body already has.
func MergeExtra(body []byte, extra map[string]any, allowed ...string) ([]byte, error) {
	if len(extra) == 0 || len(allowed) == 0 {
		return body, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("merging extra fields: %w", err)
	}

	changed := false
	for _, key := range allowed {
		v, ok := extra[key]
		if !ok {
			continue
		}
		if _, exists := obj[key]; exists {
			continue
		}
		obj[key] = v
		changed = true
	}
	if !changed {
		return body, nil
	}
	return json.Marshal(obj)
}

// PickExtra collects the named fields of a decoded request body into an
// Extra map. It returns nil when none are present.
func PickExtra(raw map[string]json.RawMessage, keys ...string) map[string]any {
	var extra map[string]any
	for _, key := range keys {
		b, ok := raw[key]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = v
	}
	return extra
}

// ToolArguments renders tool input as a JSON object string.
func ToolArguments(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseToolArguments decodes a JSON object string, tolerating invalid input.
func ParseToolArguments(args string) map[string]any {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return map[string]any{"_raw": args}
	}
	return input
}

// TextOnly reports whether every block is a text block, and joins them.
func TextOnly(blocks []llm.ContentBlock) (string, bool) {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type != llm.BlockText {
			return "", false
		}
		sb.WriteString(b.Text)
	}
	return sb.String(), true
}

// StopSequences normalizes a decoded "stop" field (string or list).
func StopSequences(v any) []string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// DecodeError labels a malformed stream element.
func DecodeError(provider string, err error) *llm.Error {
	return llm.NewError(llm.ErrorKindStreamDecode, provider, err)
}
