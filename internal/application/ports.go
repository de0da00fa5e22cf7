package application

import (
	"context"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

// Lifecycle event types published on the navigation events topic.
const (
	EventRoutePlanned        = "navigation.route.planned"
	EventPlanFailed          = "navigation.plan.failed"
	EventNavigationStarted   = "navigation.started"
	EventNavigationArrived   = "navigation.arrived"
	EventNavigationCancelled = "navigation.cancelled"
)

// PresentationSink receives render and UI-state commands for one session.
type PresentationSink interface {
	ClearPreviousPath()
	DrawPath(points []route.Coordinate)
	PlaceMarker(at route.Coordinate, label string)
	FitView(bounds route.Bounds)
	SetNavigationControlEnabled(enabled bool)
}

// SpeechSink accepts text to be spoken. Speak must not block.
type SpeechSink interface {
	Speak(text string)
}

// EventPublisher publishes domain events keyed by aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data interface{}) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
