package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafkago.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes CloudEvents to Kafka.
type Producer struct {
	writer MessageWriter
	source string
	logger *zap.Logger
}

// NewProducer creates a Producer writing to the given brokers. The topic is
// chosen per message.
func NewProducer(brokers []string, source string, logger *zap.Logger) *Producer {
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, source, logger)
}

// NewProducerWithWriter creates a Producer on an existing writer.
func NewProducerWithWriter(writer MessageWriter, source string, logger *zap.Logger) *Producer {
	return &Producer{writer: writer, source: source, logger: logger}
}

// PublishEvent wraps data in a CloudEvent and writes it keyed by key.
func (p *Producer) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	evt, err := NewCloudEvent(p.source, eventType, key, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "ce_type", Value: []byte(eventType)},
			{Key: "ce_id", Value: []byte(evt.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", eventType),
		zap.String("key", key),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// TopicPublisher publishes every event to one topic.
type TopicPublisher struct {
	producer *Producer
	topic    string
}

// NewTopicPublisher binds a producer to a topic.
func NewTopicPublisher(producer *Producer, topic string) *TopicPublisher {
	return &TopicPublisher{producer: producer, topic: topic}
}

// Publish writes one event to the bound topic.
func (p *TopicPublisher) Publish(ctx context.Context, eventType, key string, data interface{}) error {
	return p.producer.PublishEvent(ctx, p.topic, key, eventType, data)
}

// LogPublisher logs events instead of publishing them. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, eventType, key string, data interface{}) error {
	p.logger.Info("event", zap.String("type", eventType), zap.String("key", key), zap.Any("data", data))
	return nil
}
