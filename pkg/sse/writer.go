package sse

import (
	"io"
	"strconv"
	"strings"
)

// flusher is implemented by http.ResponseWriter and bufio.Writer.
type flusher interface {
	Flush()
}

type errFlusher interface {
	Flush() error
}

// Encode writes ev to w in SSE wire format. Multi-line data is split into
// one "data:" line per line. Every event ends with a blank line.
func Encode(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.Type != "" {
		b.WriteString("event: ")
		b.WriteString(oneLine(ev.Type))
		b.WriteByte('\n')
	}
	if ev.ID != "" {
		b.WriteString("id: ")
		b.WriteString(oneLine(ev.ID))
		b.WriteByte('\n')
	}
	if ev.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.Itoa(ev.Retry))
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// Writer encodes events and flushes after each one so clients see them as
// soon as they are produced.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w. If w can flush (http.ResponseWriter, *bufio.Writer) it
// is flushed after every event.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes and flushes one event.
func (w *Writer) Write(ev Event) error {
	if err := Encode(w.w, ev); err != nil {
		return err
	}
	switch f := w.w.(type) {
	case errFlusher:
		return f.Flush()
	case flusher:
		f.Flush()
	}
	return nil
}

// Comment writes a comment line, commonly used as a keep-alive.
func (w *Writer) Comment(text string) error {
	_, err := io.WriteString(w.w, ": "+oneLine(text)+"\n\n")
	return err
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}
