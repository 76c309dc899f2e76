package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// Handlers are the per-kind callbacks driven by Run. Nil handlers are
// skipped. A handler that returns an error (or panics) ends the callback
// sequence for the stream.
type Handlers struct {
	OnText      func(text string) error
	OnReasoning func(text string) error
	OnToolCall  func(calls []llm.ToolCall) error
	OnUsage     func(usage llm.Usage) error
	OnStop      func(reason string) error

	// OnError receives the terminal error of the stream, whether it came
	// from upstream or from a failing handler. It is called at most once.
	OnError func(err *llm.Error)

	// OnComplete runs once after the terminal chunk was handled.
	OnComplete func()
}

// Run drives h with the chunks of s, in order, on the calling goroutine.
//
// It returns nil when the stream stopped normally, the canonical error when
// it ended with an error chunk or a handler failed, and ctx.Err() when ctx
// was canceled first. After a cancellation no handler runs, OnComplete
// included. s is closed when Run returns.
func Run(ctx context.Context, s *Stream, h Handlers) error {
	defer s.Close()

	provider := s.Context().Provider
	for s.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := s.Chunk()
		if err := dispatch(h, chunk); err != nil {
			cbErr := llm.NewError(llm.ErrorKindCallbackFailed, provider, err)
			notifyError(h, cbErr)
			complete(h)
			return cbErr
		}

		if chunk.Terminal() {
			var result error
			if chunk.Kind == llm.ChunkError {
				cerr := chunk.Err
				if cerr == nil {
					cerr = llm.NewError(llm.ErrorKindProviderBusiness, provider, nil)
				}
				notifyError(h, cerr)
				result = cerr
			}
			complete(h)
			return result
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Err(); err != nil {
		return err
	}
	return errors.New("stream ended without a terminal chunk")
}

// dispatch runs the handler for one non-error chunk.
func dispatch(h Handlers, c llm.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", c.Kind, r)
		}
	}()

	switch c.Kind {
	case llm.ChunkText:
		if h.OnText != nil {
			return wrap(c.Kind, h.OnText(c.Text))
		}
	case llm.ChunkReasoning:
		if h.OnReasoning != nil {
			return wrap(c.Kind, h.OnReasoning(c.Text))
		}
	case llm.ChunkToolCalls:
		if h.OnToolCall != nil {
			return wrap(c.Kind, h.OnToolCall(c.ToolCalls))
		}
	case llm.ChunkUsage:
		if h.OnUsage != nil && c.Usage != nil {
			return wrap(c.Kind, h.OnUsage(*c.Usage))
		}
	case llm.ChunkStop:
		if h.OnStop != nil {
			return wrap(c.Kind, h.OnStop(c.StopReason))
		}
	}
	return nil
}

func wrap(kind llm.ChunkKind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s handler: %w", kind, err)
}

func notifyError(h Handlers, err *llm.Error) {
	if h.OnError == nil || err == nil {
		return
	}
	defer func() { _ = recover() }()
	h.OnError(err)
}

func complete(h Handlers) {
	if h.OnComplete == nil {
		return
	}
	defer func() { _ = recover() }()
	h.OnComplete()
}
