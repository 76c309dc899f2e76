// Package stream holds the per-request state threaded through a dialect
// transformer while a single response streams in.
//
// A Context is created for exactly one logical response, mutated by one
// transformer as raw chunks arrive in order, and discarded once the stream
// ends. It is never shared between requests and therefore carries no locks.
package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// Context is the mutable state of one streaming response.
type Context struct {
	// StreamID correlates every chunk emitted for this response.
	StreamID string

	// Provider names the logical provider serving the stream. It is used to
	// label canonical errors.
	Provider string

	// ThinkingMode is true while the stream is inside an inline reasoning span.
	ThinkingMode bool

	// StartedAt is when the context was created.
	StartedAt time.Time

	markers []Marker
	active  int
	carry   string
	maxLen  int

	toolCalls map[int]*toolCallBuffer
	nextIndex int

	usage       *llm.Usage
	pendingStop string
	stopPending bool
	terminated  bool
	emitted     int
	counts      map[llm.ChunkKind]int
}

// Option configures a Context.
type Option func(*Context)

// WithMarkers replaces the default reasoning markers.
func WithMarkers(markers ...Marker) Option {
	return func(c *Context) {
		valid := make([]Marker, 0, len(markers))
		for _, m := range markers {
			if m.Start != "" && m.End != "" {
				valid = append(valid, m)
			}
		}
		c.markers = valid
	}
}

// WithProvider sets the provider name used for error attribution.
func WithProvider(name string) Option {
	return func(c *Context) {
		c.Provider = name
	}
}

// New creates the context for one stream. An empty streamID gets a fresh one.
func New(streamID string, opts ...Option) *Context {
	if streamID == "" {
		streamID = NewStreamID()
	}

	c := &Context{
		StreamID:  streamID,
		StartedAt: time.Now(),
		markers:   DefaultMarkers(),
		active:    -1,
		toolCalls: make(map[int]*toolCallBuffer),
		counts:    make(map[llm.ChunkKind]int),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, m := range c.markers {
		c.maxLen = max(c.maxLen, len(m.Start), len(m.End))
	}

	return c
}

// NewStreamID returns a fresh opaque stream identifier.
func NewStreamID() string {
	return "stream_" + uuid.NewString()
}

// AddUsage folds a usage report into the running total for the stream and
// returns the merged snapshot.
func (c *Context) AddUsage(u *llm.Usage) *llm.Usage {
	if u == nil {
		return c.usage
	}
	if c.usage == nil {
		c.usage = &llm.Usage{}
	}
	c.usage.Merge(u)

	snapshot := *c.usage
	return &snapshot
}

// Usage returns the merged usage seen so far, or nil.
func (c *Context) Usage() *llm.Usage {
	return c.usage
}

// SetPendingStop records that the provider signaled completion without yet
// closing the stream (for example a finish reason followed by a usage frame).
func (c *Context) SetPendingStop(reason string) {
	c.pendingStop = llm.NormalizeStopReason(reason)
	c.stopPending = true
}

// PendingStop returns the recorded stop reason, if any.
func (c *Context) PendingStop() (string, bool) {
	return c.pendingStop, c.stopPending
}

// Terminated reports whether a terminal chunk was already produced.
func (c *Context) Terminated() bool {
	return c.terminated
}

// Stop returns the chunks that close the stream: any carried text, any tool
// calls still open, and the stop chunk. reason falls back to the pending stop
// reason. A second call returns nil so exactly one terminal chunk is produced.
func (c *Context) Stop(reason string) ([]llm.Chunk, error) {
	if c.terminated {
		return nil, nil
	}

	if reason == "" && c.stopPending {
		reason = c.pendingStop
	}

	var out []llm.Chunk
	for _, seg := range c.FlushCarry() {
		out = append(out, seg.Chunk(c.StreamID))
	}

	calls, err := c.FinalizeToolCalls()
	if err != nil {
		return out, err
	}
	if len(calls) > 0 {
		out = append(out, llm.ToolCallsChunk(c.StreamID, calls...))
	}

	c.terminated = true
	return append(out, llm.StopChunk(c.StreamID, llm.NormalizeStopReason(reason))), nil
}

// Fail produces the terminal error chunk for err. It returns nil when the
// stream already terminated.
func (c *Context) Fail(err *llm.Error) []llm.Chunk {
	if c.terminated {
		return nil
	}
	c.terminated = true
	return []llm.Chunk{llm.ErrorChunk(c.StreamID, err)}
}

// Finish closes a stream whose upstream source ended. A recorded pending stop
// becomes the stop chunk; without one the stream was truncated and the result
// is a stream_decode error chunk.
func (c *Context) Finish() []llm.Chunk {
	if c.terminated {
		return nil
	}

	if !c.stopPending {
		return c.Fail(&llm.Error{
			Kind:     llm.ErrorKindStreamDecode,
			Provider: c.Provider,
			Message:  "upstream ended before a terminal signal",
		})
	}

	out, err := c.Stop("")
	if err != nil {
		return append(out, c.Fail(llm.NewError(llm.ErrorKindStreamDecode, c.Provider, err))...)
	}
	return out
}

// Observe records chunks handed downstream. Transformers do not need to call
// it; the pipeline does.
func (c *Context) Observe(chunks []llm.Chunk) {
	c.emitted += len(chunks)
	for i := range chunks {
		c.counts[chunks[i].Kind]++
		if chunks[i].Terminal() {
			c.terminated = true
		}
	}
}

// Emitted is the number of chunks handed downstream so far.
func (c *Context) Emitted() int {
	return c.emitted
}

// Counts returns the number of chunks handed downstream per kind.
func (c *Context) Counts() map[llm.ChunkKind]int {
	out := make(map[llm.ChunkKind]int, len(c.counts))
	for k, n := range c.counts {
		out[k] = n
	}
	return out
}
