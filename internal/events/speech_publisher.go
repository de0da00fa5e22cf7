package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const drainTimeout = 5 * time.Second

// SpeechUtterance is the payload of a speech event.
type SpeechUtterance struct {
	SessionID uuid.UUID `json:"session_id"`
	Sequence  uint64    `json:"sequence"`
	Text      string    `json:"text"`
	SpokenAt  time.Time `json:"spoken_at"`
}

// SpeechPublisher streams utterances to Kafka. Speak never blocks: utterances
// go through a bounded queue drained by a single writer, so per-session order
// is preserved and a full queue drops the utterance.
type SpeechPublisher struct {
	producer *Producer
	queue    chan SpeechUtterance
	dropped  atomic.Int64
	logger   *zap.Logger
}

// NewSpeechPublisher creates a SpeechPublisher with the given queue size.
func NewSpeechPublisher(producer *Producer, buffer int, logger *zap.Logger) *SpeechPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &SpeechPublisher{
		producer: producer,
		queue:    make(chan SpeechUtterance, buffer),
		logger:   logger,
	}
}

// ForSession returns a speech sink bound to one session.
func (p *SpeechPublisher) ForSession(id uuid.UUID) *SessionSpeech {
	return &SessionSpeech{publisher: p, sessionID: id}
}

// Dropped returns how many utterances were discarded on a full queue.
func (p *SpeechPublisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *SpeechPublisher) enqueue(u SpeechUtterance) {
	select {
	case p.queue <- u:
	default:
		p.dropped.Add(1)
		p.logger.Warn("speech queue full, dropping utterance",
			zap.String("session_id", u.SessionID.String()),
			zap.Uint64("sequence", u.Sequence),
		)
	}
}

// Run writes queued utterances until ctx is cancelled, then drains what is
// left with a short deadline.
func (p *SpeechPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case u := <-p.queue:
			p.write(ctx, u)
		}
	}
}

func (p *SpeechPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case u := <-p.queue:
			p.write(ctx, u)
		default:
			return
		}
	}
}

func (p *SpeechPublisher) write(ctx context.Context, u SpeechUtterance) {
	if err := p.producer.PublishEvent(ctx, TopicNavigationSpeech, u.SessionID.String(), EventSpeechUtterance, u); err != nil {
		p.logger.Error("failed to publish utterance",
			zap.String("session_id", u.SessionID.String()),
			zap.Error(err),
		)
	}
}

// SessionSpeech is the speech sink of one session.
type SessionSpeech struct {
	publisher *SpeechPublisher
	sessionID uuid.UUID
	seq       atomic.Uint64
}

// Speak queues text for publication.
func (s *SessionSpeech) Speak(text string) {
	s.publisher.enqueue(SpeechUtterance{
		SessionID: s.sessionID,
		Sequence:  s.seq.Add(1),
		Text:      text,
		SpokenAt:  time.Now().UTC(),
	})
}

// LogSpeech writes utterances to the log. It is used when no broker is
// configured.
type LogSpeech struct {
	sessionID uuid.UUID
	logger    *zap.Logger
}

// NewLogSpeech creates a LogSpeech for a session.
func NewLogSpeech(sessionID uuid.UUID, logger *zap.Logger) *LogSpeech {
	return &LogSpeech{sessionID: sessionID, logger: logger}
}

func (s *LogSpeech) Speak(text string) {
	s.logger.Info("speak", zap.String("session_id", s.sessionID.String()), zap.String("text", text))
}
