package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
)

// MockPublisher is a test eventstream.Publisher that records every event.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.StreamCompletedEvent
	closed bool

	// FailWith, when set, is returned by PublishStreamCompleted and the
	// event is not recorded.
	FailWith error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishStreamCompleted(_ context.Context, event *eventstream.StreamCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a snapshot of the recorded events.
func (m *MockPublisher) Events() []*eventstream.StreamCompletedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.StreamCompletedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
