package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/llm"
	"github.com/papercomputeco/switchboard/pkg/llm/stream"
)

// ErrStreamClosed is returned by Err after Close was called before the
// stream reached its terminal chunk.
var ErrStreamClosed = errors.New("stream closed")

// Transformer is the part of a dialect the pipeline drives. Every
// provider.Provider satisfies it.
type Transformer interface {
	ParseStreamChunk(payload []byte, sc *stream.Context) ([]llm.Chunk, error)
	MapError(raw error, provider string) *llm.Error
}

// TerminalFunc observes the terminal chunk of a stream once it is delivered.
type TerminalFunc func(sc *stream.Context, terminal llm.Chunk)

type options struct {
	logger     *zap.Logger
	onTerminal []TerminalFunc
}

// Option configures Process.
type Option func(*options)

// WithLogger sets the logger used for terminal and failure events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// OnTerminal registers fn to run after the terminal chunk is delivered.
// It does not run for canceled or closed streams.
func OnTerminal(fn TerminalFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onTerminal = append(o.onTerminal, fn)
		}
	}
}

// Stream is the pull-based canonical chunk sequence for one request:
//
//	s := pipeline.Process(ctx, src, prov, sc)
//	defer s.Close()
//	for s.Next() {
//		chunk := s.Chunk()
//	}
//	if err := s.Err(); err != nil { ... }
//
// A Stream is not safe for concurrent use. It pulls exactly one upstream
// element per transform and hands every chunk it produced downstream before
// pulling the next one.
type Stream struct {
	ctx  context.Context
	src  Source
	tr   Transformer
	sc   *stream.Context
	opts options

	pending []llm.Chunk
	current llm.Chunk
	err     error

	// exhausted is set once nothing more may be pulled from src.
	exhausted bool
	finished  bool
	released  sync.Once
	stopWatch func() bool
}

// Process starts transforming src with tr. Nothing is pulled until the first
// call to Next. Cancelling ctx closes src, which unblocks a pending read.
func Process(ctx context.Context, src Source, tr Transformer, sc *stream.Context, opts ...Option) *Stream {
	s := &Stream{
		ctx: ctx,
		src: src,
		tr:  tr,
		sc:  sc,
		opts: options{
			logger: zap.NewNop(),
		},
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.stopWatch = context.AfterFunc(ctx, func() {
		_ = src.Close()
	})
	return s
}

// Next advances to the next canonical chunk. It returns false after the
// terminal chunk was delivered, after Close, or once ctx is done.
func (s *Stream) Next() bool {
	for {
		if s.err != nil || s.finished {
			return false
		}
		if err := s.ctx.Err(); err != nil {
			s.abort(err)
			return false
		}

		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending = s.pending[1:]
			s.sc.Observe([]llm.Chunk{s.current})
			if s.current.Terminal() {
				s.pending = nil
				s.terminal(s.current)
			}
			return true
		}

		if s.exhausted {
			return false
		}
		s.pull()
	}
}

// Chunk returns the chunk Next advanced to.
func (s *Stream) Chunk() llm.Chunk {
	return s.current
}

// Err returns the cancellation cause if the stream was cut short by its
// context, ErrStreamClosed if it was closed early, and nil otherwise.
// Upstream and transform failures are delivered in-band as error chunks.
func (s *Stream) Err() error {
	return s.err
}

// Context returns the stream context the chunks were produced with.
func (s *Stream) Context() *stream.Context {
	return s.sc
}

// Close releases the upstream. Closing a stream that has not delivered its
// terminal chunk ends it without one.
func (s *Stream) Close() error {
	if s.err == nil && !s.finished {
		s.err = ErrStreamClosed
	}
	s.pending = nil
	s.exhausted = true
	return s.release()
}

// pull reads one upstream element and transforms it.
func (s *Stream) pull() {
	payload, err := s.src.Next(s.ctx)
	if s.ctx.Err() != nil {
		// the loop in Next reports the cancellation
		return
	}

	switch {
	case errors.Is(err, io.EOF):
		s.pending = append(s.pending, s.sc.Finish()...)
		s.exhausted = true
		_ = s.release()
		return
	case err != nil:
		s.fail(fmt.Errorf("reading upstream: %w", err))
		return
	}

	chunks, err := s.transform(payload)
	for i := range chunks {
		s.pending = append(s.pending, chunks[i])
		if chunks[i].Terminal() {
			// the stop wins over a late error
			s.exhausted = true
			_ = s.release()
			return
		}
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *Stream) transform(payload []byte) (chunks []llm.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = llm.NewError(llm.ErrorKindStreamDecode, s.sc.Provider, fmt.Errorf("transformer panic: %v", r))
		}
	}()
	return s.tr.ParseStreamChunk(payload, s.sc)
}

// fail queues the terminal error chunk for err and stops pulling.
func (s *Stream) fail(err error) {
	mapped := s.tr.MapError(err, s.sc.Provider)
	s.opts.logger.Debug("stream failed",
		zap.String("stream_id", s.sc.StreamID),
		zap.String("provider", s.sc.Provider),
		zap.String("kind", string(mapped.Kind)),
		zap.Error(err),
	)
	s.pending = append(s.pending, s.sc.Fail(mapped)...)
	s.exhausted = true
	_ = s.release()
}

// abort ends the stream on cancellation without a terminal chunk.
func (s *Stream) abort(err error) {
	s.err = err
	s.pending = nil
	s.exhausted = true
	_ = s.release()
	s.opts.logger.Debug("stream canceled",
		zap.String("stream_id", s.sc.StreamID),
		zap.Int("emitted", s.sc.Emitted()),
	)
}

func (s *Stream) terminal(c llm.Chunk) {
	s.finished = true
	_ = s.release()

	fields := []zap.Field{
		zap.String("stream_id", s.sc.StreamID),
		zap.String("provider", s.sc.Provider),
		zap.Int("emitted", s.sc.Emitted()),
	}
	if c.Kind == llm.ChunkError && c.Err != nil {
		fields = append(fields, zap.String("kind", string(c.Err.Kind)))
	} else {
		fields = append(fields, zap.String("stop_reason", c.StopReason))
	}
	s.opts.logger.Debug("stream terminated", fields...)

	for _, fn := range s.opts.onTerminal {
		fn(s.sc, c)
	}
}

func (s *Stream) release() error {
	var err error
	s.released.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		if s.src != nil {
			err = s.src.Close()
		}
	})
	return err
}
