package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/service-navigation/internal/adapter/directions"
	"github.com/saferoute/service-navigation/internal/adapter/geocoder"
	"github.com/saferoute/service-navigation/internal/adapter/ranker"
	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/session"
)

// ErrPlanSuperseded is returned by a plan whose results were discarded
// because a newer plan started on the same session.
var ErrPlanSuperseded = errors.New("route plan superseded by a newer plan")

// Collaborators are the remote services a session orchestrates.
type Collaborators struct {
	Geocoder   geocoder.Geocoder
	Ranker     ranker.Ranker
	Directions directions.Provider
}

// LifecycleEvent is the payload of every navigation lifecycle event.
type LifecycleEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	RouteName   string    `json:"route_name,omitempty"`
	SafetyScore float64   `json:"safety_score,omitempty"`
	Steps       int       `json:"steps,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RouteDTO is the response representation of a planned route.
type RouteDTO struct {
	Origin      string                 `json:"origin"`
	Destination string                 `json:"destination"`
	Start       route.Coordinate       `json:"start"`
	End         route.Coordinate       `json:"end"`
	Chosen      route.SafetyCandidate  `json:"chosen"`
	Path        []route.Coordinate     `json:"path"`
	Steps       []route.NavigationStep `json:"steps"`
	Bounds      route.Bounds           `json:"bounds"`
}

// SessionSnapshot is a consistent copy of a session's state.
type SessionSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Route     *RouteDTO `json:"route,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouteSession owns one traveler's route lifecycle: planning, rendering and
// narration.
type RouteSession struct {
	id        uuid.UUID
	collab    Collaborators
	view      PresentationSink
	speech    SpeechSink
	narrator  *Narrator
	publisher EventPublisher
	clock     clockwork.Clock
	logger    *zap.Logger

	mu         sync.Mutex
	status     session.Status
	reason     string
	current    *route.NavigableRoute
	narration  *Narration
	generation uint64
	updatedAt  time.Time
}

// NewRouteSession creates an idle session.
func NewRouteSession(
	id uuid.UUID,
	collab Collaborators,
	view PresentationSink,
	speech SpeechSink,
	publisher EventPublisher,
	clock clockwork.Clock,
	narratorCfg NarratorConfig,
	logger *zap.Logger,
) *RouteSession {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	logger = logger.With(zap.String("session_id", id.String()))
	return &RouteSession{
		id:        id,
		collab:    collab,
		view:      view,
		speech:    speech,
		narrator:  NewNarrator(clock, speech, view, narratorCfg, logger),
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		status:    session.StatusIdle,
		updatedAt: clock.Now(),
	}
}

// ID returns the session identifier.
func (s *RouteSession) ID() uuid.UUID {
	return s.id
}

// PlanRoute resolves both places, asks the ranker for the safest corridor,
// fetches directions and renders the result. Empty input is rejected before
// any state change or network call.
func (s *RouteSession) PlanRoute(ctx context.Context, startText, endText string) (*route.NavigableRoute, error) {
	origin, err := route.NewPlaceQuery(startText, "start")
	if err != nil {
		return nil, err
	}
	destination, err := route.NewPlaceQuery(endText, "end")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	// Narration must stop before any command of the new plan reaches a sink.
	if s.narration != nil {
		s.narration.Cancel()
		s.narration = nil
	}
	if err := s.transition(session.StatusPlanning); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.reason = ""
	s.current = nil
	s.view.SetNavigationControlEnabled(false)
	s.speech.Speak(fmt.Sprintf("Finding safest route from %s to %s", origin, destination))
	s.mu.Unlock()

	s.logger.Info("planning route",
		zap.String("origin", origin.RawText),
		zap.String("destination", destination.RawText),
		zap.Uint64("generation", gen),
	)

	var (
		start, end route.Coordinate
		g          errgroup.Group
	)
	g.Go(func() error {
		c, err := s.collab.Geocoder.Resolve(ctx, origin.RawText)
		if err != nil {
			return err
		}
		start = c
		return nil
	})
	g.Go(func() error {
		c, err := s.collab.Geocoder.Resolve(ctx, destination.RawText)
		if err != nil {
			return err
		}
		end = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(ctx, gen, origin, destination, err)
	}

	chosen, err := s.collab.Ranker.Rank(ctx, origin.RawText, destination.RawText)
	if err != nil {
		return nil, s.fail(ctx, gen, origin, destination, err)
	}

	dirs, err := s.collab.Directions.Directions(ctx, start, end)
	if err != nil {
		return nil, s.fail(ctx, gen, origin, destination, err)
	}

	planned, err := route.NewNavigableRoute(origin, destination, start, end, chosen, dirs)
	if err != nil {
		return nil, s.fail(ctx, gen, origin, destination, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Info("discarding superseded plan", zap.Uint64("generation", gen))
		return nil, ErrPlanSuperseded
	}
	if err := s.transition(session.StatusRouteReady); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.render(planned)
	s.current = planned
	s.view.SetNavigationControlEnabled(true)
	s.speech.Speak(fmt.Sprintf("Safest route found with score %s.", formatScore(chosen.SafetyScore)))
	s.mu.Unlock()

	s.logger.Info("route planned",
		zap.String("route", chosen.Name),
		zap.Float64("safety_score", chosen.SafetyScore),
		zap.Int("points", len(dirs.Path)),
		zap.Int("steps", len(dirs.Steps)),
	)
	s.publish(ctx, EventRoutePlanned, LifecycleEvent{
		Status:      session.StatusRouteReady.String(),
		Origin:      origin.RawText,
		Destination: destination.RawText,
		RouteName:   chosen.Name,
		SafetyScore: chosen.SafetyScore,
		Steps:       len(dirs.Steps),
	})
	return planned, nil
}

// render draws the route. Caller holds s.mu.
func (s *RouteSession) render(r *route.NavigableRoute) {
	s.view.ClearPreviousPath()
	s.view.DrawPath(r.PathPoints())
	s.view.PlaceMarker(r.Start(), "Start: "+r.OriginLabel())
	s.view.PlaceMarker(r.End(), "Destination: "+r.DestinationLabel())
	s.view.FitView(r.Bounds())
}

func (s *RouteSession) fail(ctx context.Context, gen uint64, origin, destination route.PlaceQuery, cause error) error {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrPlanSuperseded
	}
	reason := route.UserMessage(cause)
	if err := s.transition(session.StatusFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.reason = reason
	s.current = nil
	s.mu.Unlock()

	s.logger.Warn("route planning failed",
		zap.String("kind", string(route.KindOf(cause))),
		zap.Error(cause),
	)
	s.publish(ctx, EventPlanFailed, LifecycleEvent{
		Status:      session.StatusFailed.String(),
		Reason:      reason,
		Origin:      origin.RawText,
		Destination: destination.RawText,
	})
	return cause
}

// StartNavigation narrates the current route. A route without steps arrives
// immediately.
func (s *RouteSession) StartNavigation(ctx context.Context) error {
	s.mu.Lock()
	if _, err := s.status.Transition(session.StatusNarrating); err != nil {
		s.mu.Unlock()
		return err
	}
	steps := s.current.Steps()
	label := s.current.DestinationLabel()

	if len(steps) == 0 {
		if err := s.transition(session.StatusArrived); err != nil {
			s.mu.Unlock()
			return err
		}
		s.view.SetNavigationControlEnabled(false)
		s.speech.Speak(ArrivalAnnouncement(label))
		s.mu.Unlock()
		s.publish(ctx, EventNavigationArrived, LifecycleEvent{Status: session.StatusArrived.String(), Destination: label})
		return nil
	}

	if err := s.transition(session.StatusNarrating); err != nil {
		s.mu.Unlock()
		return err
	}
	task := s.narrator.Narrate(steps, label)
	s.narration = task
	gen := s.generation
	s.mu.Unlock()

	go s.awaitArrival(gen, task)

	s.logger.Info("navigation started", zap.Int("steps", len(steps)))
	s.publish(ctx, EventNavigationStarted, LifecycleEvent{
		Status:      session.StatusNarrating.String(),
		Destination: label,
		Steps:       len(steps),
	})
	return nil
}

func (s *RouteSession) awaitArrival(gen uint64, task *Narration) {
	<-task.Done()
	if !task.Completed() {
		return
	}

	s.mu.Lock()
	if gen != s.generation || s.narration != task {
		s.mu.Unlock()
		return
	}
	s.narration = nil
	if err := s.transition(session.StatusArrived); err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to record arrival", zap.Error(err))
		return
	}
	label := s.current.DestinationLabel()
	s.mu.Unlock()

	s.logger.Info("traveler arrived", zap.String("destination", label))
	s.publish(context.Background(), EventNavigationArrived, LifecycleEvent{
		Status:      session.StatusArrived.String(),
		Destination: label,
	})
}

// CancelNavigation stops narration and returns to route_ready. It does nothing
// outside narration.
func (s *RouteSession) CancelNavigation(ctx context.Context) error {
	s.mu.Lock()
	if s.status != session.StatusNarrating {
		s.mu.Unlock()
		return nil
	}
	if s.narration != nil {
		s.narration.Cancel()
		s.narration = nil
	}
	if err := s.transition(session.StatusRouteReady); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("navigation cancelled")
	s.publish(ctx, EventNavigationCancelled, LifecycleEvent{Status: session.StatusRouteReady.String()})
	return nil
}

// Close cancels any narration in progress. The session is unusable afterwards.
func (s *RouteSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.narration != nil {
		s.narration.Cancel()
		s.narration = nil
	}
}

// Status returns the current status and failure reason.
func (s *RouteSession) Status() (session.Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.reason
}

// LastActivity returns when the session state last changed.
func (s *RouteSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Snapshot returns a copy of the session state.
func (s *RouteSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:        s.id,
		Status:    s.status.String(),
		Reason:    s.reason,
		UpdatedAt: s.updatedAt,
	}
	if s.current != nil {
		snap.Route = toRouteDTO(s.current)
	}
	return snap
}

// transition moves the session to target through the status machine. Caller
// holds s.mu.
func (s *RouteSession) transition(target session.Status) error {
	next, err := s.status.Transition(target)
	if err != nil {
		return err
	}
	s.status = next
	s.touch()
	return nil
}

// touch records activity. Caller holds s.mu.
func (s *RouteSession) touch() {
	s.updatedAt = s.clock.Now()
}

func (s *RouteSession) publish(ctx context.Context, eventType string, evt LifecycleEvent) {
	evt.SessionID = s.id
	evt.OccurredAt = s.clock.Now().UTC()
	if err := s.publisher.Publish(ctx, eventType, s.id.String(), evt); err != nil {
		s.logger.Error("failed to publish lifecycle event",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func toRouteDTO(r *route.NavigableRoute) *RouteDTO {
	return &RouteDTO{
		Origin:      r.OriginLabel(),
		Destination: r.DestinationLabel(),
		Start:       r.Start(),
		End:         r.End(),
		Chosen:      r.ChosenCandidate(),
		Path:        r.PathPoints(),
		Steps:       r.Steps(),
		Bounds:      r.Bounds(),
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
