package mqtt

import (
	"context"
	"sync"
)

// Message is a payload captured by MockPublisher.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MockPublisher records published messages in memory.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []Message
	// Err, when set, is returned by every Publish call.
	Err error
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// Publish records the message or returns the configured error.
func (m *MockPublisher) Publish(_ context.Context, topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: append([]byte(nil), payload...), Retained: retained})
	return nil
}

// Last returns the most recent message on topic.
func (m *MockPublisher) Last(topic string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].Topic == topic {
			return m.Messages[i], true
		}
	}
	return Message{}, false
}

// Count returns the number of recorded messages.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
