package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/safety"
)

type memoryWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func (w *memoryWriter) Messages() []kafkago.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafkago.Message(nil), w.messages...)
}

func decodeEvent(t *testing.T, msg kafkago.Message) CloudEvent {
	t.Helper()
	var evt CloudEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	return evt
}

func TestTopicPublisher(t *testing.T) {
	w := &memoryWriter{}
	pub := NewTopicPublisher(NewProducerWithWriter(w, "navigation", zap.NewNop()), TopicNavigationEvents)

	err := pub.Publish(context.Background(), "navigation.route.planned", "session-1", map[string]string{"route_name": "Route A"})
	require.NoError(t, err)

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicNavigationEvents, msgs[0].Topic)
	assert.Equal(t, []byte("session-1"), msgs[0].Key)

	evt := decodeEvent(t, msgs[0])
	assert.Equal(t, "1.0", evt.SpecVersion)
	assert.Equal(t, "navigation", evt.Source)
	assert.Equal(t, "navigation.route.planned", evt.Type)
	var data map[string]string
	require.NoError(t, evt.ParseData(&data))
	assert.Equal(t, "Route A", data["route_name"])

	w.err = errors.New("broker down")
	assert.Error(t, pub.Publish(context.Background(), "x", "k", nil))
}

func TestSpeechPublisher_PreservesOrder(t *testing.T) {
	w := &memoryWriter{}
	pub := NewSpeechPublisher(NewProducerWithWriter(w, "navigation", zap.NewNop()), 16, zap.NewNop())
	id := uuid.New()
	sink := pub.ForSession(id)

	sink.Speak("Starting turn by turn navigation.")
	sink.Speak("Turn left onto Kamarajar Salai")
	sink.Speak("You have arrived safely at Marina Beach.")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(w.Messages()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	var texts []string
	for i, msg := range w.Messages() {
		assert.Equal(t, TopicNavigationSpeech, msg.Topic)
		var u SpeechUtterance
		require.NoError(t, decodeEvent(t, msg).ParseData(&u))
		assert.Equal(t, id, u.SessionID)
		assert.Equal(t, uint64(i+1), u.Sequence)
		texts = append(texts, u.Text)
	}
	assert.Equal(t, []string{
		"Starting turn by turn navigation.",
		"Turn left onto Kamarajar Salai",
		"You have arrived safely at Marina Beach.",
	}, texts)
}

func TestSpeechPublisher_DropsWhenFull(t *testing.T) {
	w := &memoryWriter{}
	pub := NewSpeechPublisher(NewProducerWithWriter(w, "navigation", zap.NewNop()), 1, zap.NewNop())
	sink := pub.ForSession(uuid.New())

	sink.Speak("one")
	sink.Speak("two")
	assert.Equal(t, int64(1), pub.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Run(ctx)
	assert.Len(t, w.Messages(), 1, "queued utterances are drained on shutdown")
}

type fakeReporter struct {
	mu       sync.Mutex
	reported []safety.Observation
	err      error
	failures int
	calls    int
}

func (r *fakeReporter) ReportObservation(_ context.Context, o safety.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("database unavailable")
	}
	r.reported = append(r.reported, o)
	return nil
}

type queueReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *queueReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	evt, err := NewCloudEvent("test", eventType, "", data)
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafkago.Message{Offset: offset, Value: raw}
}

func TestSafetyObservationConsumer(t *testing.T) {
	reader := &queueReader{messages: []kafkago.Message{
		eventMessage(t, 1, EventObservationReported, safety.Observation{Latitude: 13.08, Longitude: 80.27, Lighting: 0.9}),
		{Offset: 2, Value: []byte("not json")},
		eventMessage(t, 3, "safety.something.else", nil),
	}}
	reporter := &fakeReporter{}
	c := NewSafetyObservationConsumerWithReader(reader, reporter, zap.NewNop())

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, reporter.reported, 1)
	assert.Equal(t, 0.9, reporter.reported[0].Lighting)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestSafetyObservationConsumer_FailureHandling(t *testing.T) {
	msg := eventMessage(t, 7, EventObservationReported, safety.Observation{Latitude: 13.08, Longitude: 80.27})

	invalid := &fakeReporter{err: route.NewValidationError("lighting must be within [0, 1]")}
	c := NewSafetyObservationConsumerWithReader(&queueReader{}, invalid, zap.NewNop())
	assert.NoError(t, c.handleMessage(context.Background(), msg), "invalid observations are not retried")

	reader := &queueReader{messages: []kafkago.Message{msg, eventMessage(t, 8, EventObservationReported, safety.Observation{})}}
	broken := &fakeReporter{err: errors.New("database unavailable")}
	c = NewSafetyObservationConsumerWithReader(reader, broken, zap.NewNop(),
		WithRetryBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		}),
	)
	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "database unavailable")
	assert.Equal(t, 3, broken.calls)
	assert.Empty(t, reader.committed, "a failed message is never committed past")
	assert.Len(t, reader.messages, 1, "consumption stops at the failed message")
}

func TestSafetyObservationConsumer_RetriesUntilStored(t *testing.T) {
	reader := &queueReader{messages: []kafkago.Message{
		eventMessage(t, 7, EventObservationReported, safety.Observation{Latitude: 13.08, Longitude: 80.27}),
		eventMessage(t, 8, EventObservationReported, safety.Observation{Latitude: 13.05, Longitude: 80.28}),
	}}
	reporter := &fakeReporter{failures: 2}
	c := NewSafetyObservationConsumerWithReader(reader, reporter, zap.NewNop(),
		WithRetryBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
	)

	assert.ErrorIs(t, c.Start(context.Background()), io.EOF)
	require.Len(t, reporter.reported, 2)
	assert.Equal(t, 13.08, reporter.reported[0].Latitude)
	assert.Equal(t, []int64{7, 8}, reader.committed)
}

func TestSafetyObservationConsumer_StopsRetryingOnCancel(t *testing.T) {
	reader := &queueReader{messages: []kafkago.Message{
		eventMessage(t, 7, EventObservationReported, safety.Observation{Latitude: 13.08, Longitude: 80.27}),
	}}
	reporter := &fakeReporter{err: errors.New("database unavailable")}
	c := NewSafetyObservationConsumerWithReader(reader, reporter, zap.NewNop(),
		WithRetryBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Start(ctx), context.DeadlineExceeded)
	assert.Empty(t, reader.committed)
}
