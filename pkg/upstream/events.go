package upstream

import (
	"github.com/papercomputeco/switchboard/pkg/eventstream"
	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
	"github.com/papercomputeco/switchboard/pkg/worker"
)

// EventHook returns a TerminalHook that queues a stream-completed event on
// pool. Events are dropped when the pool is saturated.
func EventHook(pool *worker.Pool) TerminalHook {
	return func(ex Exchange, sc *stream.Context, terminal llm.Chunk) {
		src := eventstream.EventSource{
			Provider:  ex.Provider,
			Candidate: ex.Candidate,
			Dialect:   ex.Dialect,
		}
		pool.Enqueue(worker.Job{
			Event: eventstream.NewStreamCompletedEvent(src, ex.Model, ex.Streaming, sc, terminal),
		})
	}
}
