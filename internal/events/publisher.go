package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type watermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewPublisher returns a Kafka backed publisher when brokers are given
// and an in-process one otherwise.
func NewPublisher(brokers []string, logger *slog.Logger) (EventPublisher, error) {
	if len(brokers) == 0 {
		logger.Info("No Kafka brokers configured, using in-process event bus")
		pub, _ := NewGoChannelPublisher(logger)
		return pub, nil
	}
	return NewKafkaPublisher(brokers, logger)
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) (EventPublisher, error) {
	pub, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return &watermillPublisher{publisher: pub, logger: logger}, nil
}

// NewGoChannelPublisher also returns the channel so callers can subscribe.
func NewGoChannelPublisher(logger *slog.Logger) (EventPublisher, *gochannel.GoChannel) {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return &watermillPublisher{publisher: ch, logger: logger}, ch
}

func (p *watermillPublisher) PublishAttemptSubmitted(ctx context.Context, event AttemptSubmittedEvent) error {
	return p.publish(ctx, TopicAttemptSubmitted, event)
}

func (p *watermillPublisher) PublishAttemptEvaluated(ctx context.Context, event AttemptEvaluatedEvent) error {
	return p.publish(ctx, TopicAttemptEvaluated, event)
}

func (p *watermillPublisher) PublishResultsPublished(ctx context.Context, event ResultsPublishedEvent) error {
	return p.publish(ctx, TopicResultsPublished, event)
}

func (p *watermillPublisher) Close() error {
	return p.publisher.Close()
}

func (p *watermillPublisher) publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", topic)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		p.logger.Error("Failed to publish event", "topic", topic, "message_id", msg.UUID, "error", err)
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	p.logger.Debug("Event published", "topic", topic, "message_id", msg.UUID)
	return nil
}
