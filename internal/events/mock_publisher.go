package events

import (
	"context"
	"log/slog"
	"sync"
)

type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

// MockEventPublisher records events in memory
type MockEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	err    error
	logger *slog.Logger
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

// FailWith makes every subsequent publish return err
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEventPublisher) PublishAttemptSubmitted(ctx context.Context, event AttemptSubmittedEvent) error {
	return m.record(TopicAttemptSubmitted, event)
}

func (m *MockEventPublisher) PublishAttemptEvaluated(ctx context.Context, event AttemptEvaluatedEvent) error {
	return m.record(TopicAttemptEvaluated, event)
}

func (m *MockEventPublisher) PublishResultsPublished(ctx context.Context, event ResultsPublishedEvent) error {
	return m.record(TopicResultsPublished, event)
}

func (m *MockEventPublisher) Close() error { return nil }

func (m *MockEventPublisher) record(topic string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, PublishedEvent{Topic: topic, Payload: payload})
	if m.logger != nil {
		m.logger.Debug("Mock event recorded", "topic", topic)
	}
	return nil
}

func (m *MockEventPublisher) GetPublishedEvents() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsFor filters recorded events by topic
func (m *MockEventPublisher) EventsFor(topic string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range m.GetPublishedEvents() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
