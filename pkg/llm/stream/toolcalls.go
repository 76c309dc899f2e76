package stream

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

type toolCallBuffer struct {
	id        string
	name      string
	args      strings.Builder
	finalized bool
}

// DeriveToolCallID returns the id used for a tool call whose provider never
// supplied one. It depends only on index and name.
func DeriveToolCallID(index int, name string) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(index) + ":" + name))
	return "call_" + hex.EncodeToString(sum[:12])
}

// AppendToolCall adds an argument fragment to the call at index and returns the
// current snapshot. id and name may be empty on continuation fragments; the
// first non-empty value wins. When no id has been seen by the time the call is
// first observed, one is derived from (index, name) and kept for the call.
func (c *Context) AppendToolCall(index int, id, name, argsDelta string) llm.ToolCall {
	buf, ok := c.toolCalls[index]
	if !ok {
		buf = &toolCallBuffer{}
		c.toolCalls[index] = buf
		if index >= c.nextIndex {
			c.nextIndex = index + 1
		}
	}

	if buf.name == "" && name != "" {
		buf.name = name
	}
	if buf.id == "" {
		if id != "" {
			buf.id = id
		} else {
			buf.id = DeriveToolCallID(index, buf.name)
		}
	}
	buf.args.WriteString(argsDelta)

	return llm.ToolCall{
		Index:     index,
		ID:        buf.id,
		Name:      buf.name,
		Arguments: buf.args.String(),
	}
}

// NextToolIndex allocates an index for dialects that deliver whole tool calls
// without numbering them.
func (c *Context) NextToolIndex() int {
	idx := c.nextIndex
	c.nextIndex++
	return idx
}

// HasToolCall reports whether a tool call was seen at index.
func (c *Context) HasToolCall(index int) bool {
	_, ok := c.toolCalls[index]
	return ok
}

// ToolCallCount is the number of distinct tool calls seen on the stream.
func (c *Context) ToolCallCount() int {
	return len(c.toolCalls)
}

// HasOpenToolCalls reports whether any tool call is still accumulating.
func (c *Context) HasOpenToolCalls() bool {
	for _, buf := range c.toolCalls {
		if !buf.finalized {
			return true
		}
	}
	return false
}

// FinalizeToolCall validates the accumulated arguments of the call at index.
// Empty arguments finalize to an empty object.
func (c *Context) FinalizeToolCall(index int) (llm.ToolCall, error) {
	buf, ok := c.toolCalls[index]
	if !ok {
		return llm.ToolCall{}, fmt.Errorf("no tool call at index %d", index)
	}

	args := strings.TrimSpace(buf.args.String())
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return llm.ToolCall{}, fmt.Errorf("tool call %d (%s): arguments are not valid JSON: %q", index, buf.name, args)
	}

	buf.finalized = true
	return llm.ToolCall{
		Index:     index,
		ID:        buf.id,
		Name:      buf.name,
		Arguments: args,
		Final:     true,
	}, nil
}

// FinalizeToolCalls finalizes every open tool call in index order.
func (c *Context) FinalizeToolCalls() ([]llm.ToolCall, error) {
	indices := make([]int, 0, len(c.toolCalls))
	for idx, buf := range c.toolCalls {
		if !buf.finalized {
			indices = append(indices, idx)
		}
	}
	slices.Sort(indices)

	out := make([]llm.ToolCall, 0, len(indices))
	for _, idx := range indices {
		call, err := c.FinalizeToolCall(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, nil
}
