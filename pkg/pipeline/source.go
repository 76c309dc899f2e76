// Package pipeline turns a sequence of provider-native stream elements into
// the canonical chunk sequence, one element at a time, and delivers it to
// callbacks or to an SSE framer.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/papercomputeco/switchboard/pkg/sse"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 4 * 1024 * 1024
)

// Source yields raw provider stream elements in arrival order. Next returns
// io.EOF once the upstream is exhausted. Close releases the upstream and may
// be called concurrently with a blocked Next to unblock it.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// closer closes the wrapped reader once, if it can be closed at all.
type closer struct {
	once sync.Once
	c    io.Closer
	err  error
}

func newCloser(r io.Reader) *closer {
	c, _ := r.(io.Closer)
	return &closer{c: c}
}

func (c *closer) Close() error {
	c.once.Do(func() {
		if c.c != nil {
			c.err = c.c.Close()
		}
	})
	return c.err
}

type sseSource struct {
	*closer
	reader *sse.Reader
}

// NewSSESource reads "data:" payloads from a text/event-stream body. Events
// without data (comments, bare event names) are skipped.
func NewSSESource(r io.Reader) Source {
	return &sseSource{closer: newCloser(r), reader: sse.NewReader(r)}
}

func (s *sseSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, io.EOF
		}
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}
		return []byte(ev.Data), nil
	}
}

type ndjsonSource struct {
	*closer
	scanner *bufio.Scanner
}

// NewNDJSONSource reads newline-delimited JSON elements. Blank lines are skipped.
func NewNDJSONSource(r io.Reader) Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)
	return &ndjsonSource{closer: newCloser(r), scanner: scanner}
}

func (s *ndjsonSource) Next(ctx context.Context) ([]byte, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// AWS event-stream header names.
const (
	headerMessageType   = ":message-type"
	headerEventType     = ":event-type"
	headerExceptionType = ":exception-type"
	headerErrorCode     = ":error-code"
	headerErrorMessage  = ":error-message"
)

type eventStreamSource struct {
	*closer
	reader  io.Reader
	decoder *eventstream.Decoder
	buf     []byte
}

// NewEventStreamSource decodes application/vnd.amazon.eventstream frames.
// Each message is presented as its JSON union member: event messages as
// {"<event-type>": payload}, exceptions as {"<exception-type>": payload} and
// error messages as {"<error-code>": {"message": "<error-message>"}}.
func NewEventStreamSource(r io.Reader) Source {
	return &eventStreamSource{
		closer:  newCloser(r),
		reader:  r,
		decoder: eventstream.NewDecoder(),
	}
}

func (s *eventStreamSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := s.decoder.Decode(s.reader, s.buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decoding event-stream message: %w", err)
	}
	s.buf = msg.Payload[:0]

	var key string
	payload := bytes.TrimSpace(msg.Payload)
	switch headerString(msg.Headers, headerMessageType) {
	case "exception":
		key = headerString(msg.Headers, headerExceptionType)
	case "error":
		key = headerString(msg.Headers, headerErrorCode)
		payload, _ = json.Marshal(map[string]string{"message": headerString(msg.Headers, headerErrorMessage)})
	default:
		key = headerString(msg.Headers, headerEventType)
	}
	if key == "" {
		key = "unknown"
	}

	if len(payload) == 0 {
		payload = []byte("{}")
	} else if !json.Valid(payload) {
		payload, _ = json.Marshal(map[string]string{"message": string(payload)})
	}

	return json.Marshal(map[string]json.RawMessage{key: payload})
}

func headerString(headers eventstream.Headers, name string) string {
	switch v := headers.Get(name).(type) {
	case eventstream.StringValue:
		return string(v)
	case nil:
		return ""
	default:
		return v.String()
	}
}

type sliceSource struct {
	frames [][]byte
}

// NewSliceSource replays frames from memory. It is used for captured streams
// and in tests.
func NewSliceSource(frames ...[]byte) Source {
	return &sliceSource{frames: frames}
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

// SourceFor picks the source for a response content type. Event streams are
// SSE, AWS event-stream frames are decoded, everything else is NDJSON.
func SourceFor(contentType string, r io.Reader) Source {
	switch ct := strings.ToLower(contentType); {
	case strings.HasPrefix(ct, "text/event-stream"):
		return NewSSESource(r)
	case strings.HasPrefix(ct, "application/vnd.amazon.eventstream"):
		return NewEventStreamSource(r)
	default:
		return NewNDJSONSource(r)
	}
}
