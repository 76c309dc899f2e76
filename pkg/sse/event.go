// Package sse reads and writes Server-Sent Events. The reader parses the
// event streams upstream providers answer with (optionally teeing the raw
// bytes to a second writer); the writer frames canonical chunks for
// downstream clients.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is a single SSE event, delimited by a blank line in the byte stream.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last "id:" field, if present.
	ID string

	// Retry is the reconnection time in milliseconds from a "retry:" field,
	// or zero.
	Retry int
}
