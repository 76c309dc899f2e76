package stream

import (
	"strings"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// Marker is a pair of inline tags that open and close a reasoning span inside
// ordinary answer text.
type Marker struct {
	Start string `toml:"start" json:"start"`
	End   string `toml:"end" json:"end"`
}

// DefaultMarkers are the inline reasoning tags recognized when none are
// configured.
func DefaultMarkers() []Marker {
	return []Marker{
		{Start: "<think>", End: "</think>"},
		{Start: "<thinking>", End: "</thinking>"},
	}
}

// Segment is a piece of text classified as reasoning or answer.
type Segment struct {
	Reasoning bool
	Text      string
}

// Chunk converts the segment into its canonical chunk.
func (s Segment) Chunk(streamID string) llm.Chunk {
	if s.Reasoning {
		return llm.ReasoningChunk(streamID, s.Text)
	}
	return llm.TextChunk(streamID, s.Text)
}

// SplitReasoning separates a text fragment into answer and reasoning segments,
// toggling ThinkingMode at each marker and stripping the markers. A trailing
// partial marker is held back and completed by the next fragment, so a marker
// split across two fragments behaves exactly like an unsplit one. The bytes
// held back never exceed the longest marker.
func (c *Context) SplitReasoning(fragment string) []Segment {
	if len(c.markers) == 0 {
		if fragment == "" {
			return nil
		}
		return []Segment{{Reasoning: c.ThinkingMode, Text: fragment}}
	}

	buf := c.carry + fragment
	c.carry = ""

	var out []Segment
	for buf != "" {
		idx, length, marker := c.nextMarker(buf)
		if idx >= 0 {
			out = appendSegment(out, c.ThinkingMode, buf[:idx])
			c.toggle(marker)
			buf = buf[idx+length:]
			continue
		}

		keep := c.partialMarkerSuffix(buf)
		out = appendSegment(out, c.ThinkingMode, buf[:len(buf)-keep])
		c.carry = buf[len(buf)-keep:]
		break
	}

	return out
}

// FlushCarry releases held back bytes as literal text in the current mode.
func (c *Context) FlushCarry() []Segment {
	if c.carry == "" {
		return nil
	}
	s := Segment{Reasoning: c.ThinkingMode, Text: c.carry}
	c.carry = ""
	return []Segment{s}
}

// Carry returns the bytes currently held back.
func (c *Context) Carry() string {
	return c.carry
}

// nextMarker finds the earliest marker that is relevant in the current mode:
// any start marker outside a reasoning span, the matching end marker inside.
func (c *Context) nextMarker(buf string) (idx, length, marker int) {
	if c.ThinkingMode {
		end := c.markers[c.active].End
		return strings.Index(buf, end), len(end), c.active
	}

	idx, length, marker = -1, 0, -1
	for i, m := range c.markers {
		at := strings.Index(buf, m.Start)
		if at < 0 {
			continue
		}
		// Prefer the earliest match, then the longest at the same offset.
		if idx < 0 || at < idx || (at == idx && len(m.Start) > length) {
			idx, length, marker = at, len(m.Start), i
		}
	}
	return idx, length, marker
}

func (c *Context) toggle(marker int) {
	if c.ThinkingMode {
		c.ThinkingMode = false
		c.active = -1
		return
	}
	c.ThinkingMode = true
	c.active = marker
}

// partialMarkerSuffix returns the length of the longest suffix of buf that is
// a proper prefix of a marker relevant in the current mode.
func (c *Context) partialMarkerSuffix(buf string) int {
	limit := min(len(buf), c.maxLen-1)
	for n := limit; n > 0; n-- {
		suffix := buf[len(buf)-n:]
		if c.ThinkingMode {
			if strings.HasPrefix(c.markers[c.active].End, suffix) {
				return n
			}
			continue
		}
		for _, m := range c.markers {
			if strings.HasPrefix(m.Start, suffix) {
				return n
			}
		}
	}
	return 0
}

func appendSegment(out []Segment, reasoning bool, text string) []Segment {
	if text == "" {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Reasoning == reasoning {
		out[n-1].Text += text
		return out
	}
	return append(out, Segment{Reasoning: reasoning, Text: text})
}

// SegmentChunks splits fragment and converts the result into chunks.
func (c *Context) SegmentChunks(fragment string) []llm.Chunk {
	segs := c.SplitReasoning(fragment)
	if len(segs) == 0 {
		return nil
	}
	out := make([]llm.Chunk, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Chunk(c.StreamID))
	}
	return out
}
