package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/safety"
)

// MessageReader is the subset of *kafkago.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ObservationReporter stores crowd-sourced safety observations.
type ObservationReporter interface {
	ReportObservation(ctx context.Context, o safety.Observation) error
}

// SafetyObservationConsumer ingests reported safety observations.
type SafetyObservationConsumer struct {
	reader     MessageReader
	reporter   ObservationReporter
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// ConsumerOption configures a SafetyObservationConsumer.
type ConsumerOption func(*SafetyObservationConsumer)

// WithRetryBackOff sets the retry policy for messages whose handling fails.
// The factory is called once per message.
func WithRetryBackOff(newBackOff func() backoff.BackOff) ConsumerOption {
	return func(c *SafetyObservationConsumer) {
		c.newBackOff = newBackOff
	}
}

// defaultRetryBackOff retries until the context ends.
func defaultRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewSafetyObservationConsumer creates a consumer in the given group.
func NewSafetyObservationConsumer(
	brokers []string,
	groupID string,
	reporter ObservationReporter,
	logger *zap.Logger,
	opts ...ConsumerOption,
) *SafetyObservationConsumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    TopicSafetyObservations,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewSafetyObservationConsumerWithReader(reader, reporter, logger, opts...)
}

// NewSafetyObservationConsumerWithReader creates a consumer on an existing reader.
func NewSafetyObservationConsumerWithReader(reader MessageReader, reporter ObservationReporter, logger *zap.Logger, opts ...ConsumerOption) *SafetyObservationConsumer {
	c := &SafetyObservationConsumer{
		reader:     reader,
		reporter:   reporter,
		newBackOff: defaultRetryBackOff,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start consumes until the context is cancelled. A message whose handling
// fails is retried with backoff and is never committed past: if retries are
// exhausted Start returns the error and the message is redelivered on the
// next start.
func (c *SafetyObservationConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("safety observation at offset %d: %w", msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *SafetyObservationConsumer) handleWithRetry(ctx context.Context, msg kafkago.Message) error {
	return backoff.RetryNotify(
		func() error { return c.handleMessage(ctx, msg) },
		backoff.WithContext(c.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("failed to handle safety observation message, retrying",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
}

// Close closes the underlying Kafka reader.
func (c *SafetyObservationConsumer) Close() error {
	return c.reader.Close()
}

func (c *SafetyObservationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from safety topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case EventObservationReported:
		return c.handleObservationReported(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled safety event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *SafetyObservationConsumer) handleObservationReported(ctx context.Context, cloudEvent CloudEvent) error {
	var obs safety.Observation
	if err := cloudEvent.ParseData(&obs); err != nil {
		c.logger.Error("failed to parse observation data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	err := c.reporter.ReportObservation(ctx, obs)
	if err != nil {
		var domainErr *route.Error
		if errors.As(err, &domainErr) && domainErr.Kind == route.KindValidation {
			c.logger.Warn("rejected invalid safety observation",
				zap.String("event_id", cloudEvent.ID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	c.logger.Info("safety observation ingested",
		zap.String("event_id", cloudEvent.ID),
		zap.Float64("latitude", obs.Latitude),
		zap.Float64("longitude", obs.Longitude),
	)
	return nil
}
