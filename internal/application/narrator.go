package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

const (
	// DefaultInitialDelay is the pause before the first step is spoken.
	DefaultInitialDelay = 2 * time.Second
	// DefaultStepDelay is the pause between steps and before arrival.
	DefaultStepDelay = 7 * time.Second

	startAnnouncement = "Starting turn by turn navigation."
)

// ArrivalAnnouncement is spoken when the traveler reaches the destination.
func ArrivalAnnouncement(destination string) string {
	return fmt.Sprintf("You have arrived safely at %s.", destination)
}

// NarratorConfig holds narration pacing.
type NarratorConfig struct {
	InitialDelay time.Duration
	StepDelay    time.Duration
}

// Narrator plays a route's steps through a speech sink on a timer.
type Narrator struct {
	clock        clockwork.Clock
	speech       SpeechSink
	view         PresentationSink
	initialDelay time.Duration
	stepDelay    time.Duration
	logger       *zap.Logger
}

// NewNarrator creates a Narrator. Zero delays fall back to the defaults.
func NewNarrator(
	clock clockwork.Clock,
	speech SpeechSink,
	view PresentationSink,
	cfg NarratorConfig,
	logger *zap.Logger,
) *Narrator {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = DefaultStepDelay
	}
	return &Narrator{
		clock:        clock,
		speech:       speech,
		view:         view,
		initialDelay: cfg.InitialDelay,
		stepDelay:    cfg.StepDelay,
		logger:       logger,
	}
}

// Narration is a running, cancellable playback.
type Narration struct {
	mu        sync.Mutex
	cancelled bool
	completed bool
	stop      context.CancelFunc
	done      chan struct{}
}

// Cancel stops all further utterances. Once Cancel returns nothing more is
// spoken by this narration. Calling it again has no effect.
func (t *Narration) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.stop()
}

// Done is closed when the playback goroutine exits.
func (t *Narration) Done() <-chan struct{} {
	return t.done
}

// Completed reports whether the arrival announcement was spoken.
func (t *Narration) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Cancelled reports whether Cancel has been called.
func (t *Narration) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// speak emits text unless the narration was cancelled. The sink is called
// while holding the lock so Cancel cannot interleave with an utterance.
func (t *Narration) speak(sink SpeechSink, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	sink.Speak(text)
	return true
}

func (t *Narration) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		t.completed = true
	}
}

// Narrate speaks the start announcement, disables the navigation control and
// schedules the steps and the arrival announcement on a new goroutine.
func (n *Narrator) Narrate(steps []route.NavigationStep, destination string) *Narration {
	ctx, stop := context.WithCancel(context.Background())
	task := &Narration{stop: stop, done: make(chan struct{})}

	n.view.SetNavigationControlEnabled(false)
	task.speak(n.speech, startAnnouncement)

	lines := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		lines = append(lines, step.SpeakableText())
	}
	lines = append(lines, ArrivalAnnouncement(destination))

	go n.play(ctx, task, lines)
	return task
}

func (n *Narrator) play(ctx context.Context, task *Narration, lines []string) {
	defer close(task.done)
	defer task.stop()

	delay := n.initialDelay
	for i, line := range lines {
		if !n.wait(ctx, delay) {
			n.logger.Debug("narration cancelled", zap.Int("spoken_steps", i))
			return
		}
		if !task.speak(n.speech, line) {
			n.logger.Debug("narration cancelled", zap.Int("spoken_steps", i))
			return
		}
		delay = n.stepDelay
	}
	task.finish()
}

func (n *Narrator) wait(ctx context.Context, d time.Duration) bool {
	timer := n.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
