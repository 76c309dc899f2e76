// Package eventstream defines the transport-neutral telemetry events emitted
// when a canonical stream ends, and the Publisher interface backends
// implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeStreamCompleted is emitted once per stream, on its terminal chunk.
	EventTypeStreamCompleted = "switchboard.stream.completed"
)

// StreamCompletedEvent is a transport-neutral event payload for a finished
// stream.
type StreamCompletedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Stream        StreamMeta    `json:"stream"`
	Outcome       StreamOutcome `json:"outcome"`
	Usage         *llm.Usage    `json:"usage,omitempty"`
}

// EventSource identifies the backend that served the stream.
type EventSource struct {
	Provider  string `json:"provider"`
	Candidate string `json:"candidate,omitempty"`
	Dialect   string `json:"dialect,omitempty"`
}

// StreamMeta captures stream lifecycle metadata.
type StreamMeta struct {
	StreamID    string                `json:"stream_id"`
	Model       string                `json:"model,omitempty"`
	Streaming   bool                  `json:"streaming"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
	DurationMs  int64                 `json:"duration_ms"`
	Chunks      map[llm.ChunkKind]int `json:"chunks"`
}

// StreamOutcome records how the stream ended. Exactly one of StopReason and
// ErrorKind is set.
type StreamOutcome struct {
	StopReason   string        `json:"stop_reason,omitempty"`
	ErrorKind    llm.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// NewStreamCompletedEvent builds the event for the stream tracked by sc that
// ended with terminal.
func NewStreamCompletedEvent(src EventSource, model string, streaming bool, sc *stream.Context, terminal llm.Chunk) *StreamCompletedEvent {
	now := time.Now().UTC()
	started := sc.StartedAt.UTC()

	ev := &StreamCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeStreamCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now,
		Source:        src,
		Stream: StreamMeta{
			StreamID:    sc.StreamID,
			Model:       model,
			Streaming:   streaming,
			StartedAt:   started,
			CompletedAt: now,
			DurationMs:  now.Sub(started).Milliseconds(),
			Chunks:      sc.Counts(),
		},
		Usage: sc.Usage(),
	}

	switch terminal.Kind {
	case llm.ChunkStop:
		ev.Outcome.StopReason = terminal.StopReason
	case llm.ChunkError:
		if terminal.Err != nil {
			ev.Outcome.ErrorKind = terminal.Err.Kind
			ev.Outcome.ErrorMessage = terminal.Err.Message
		}
	}
	return ev
}
