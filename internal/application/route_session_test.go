package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/session"
)

var (
	chennaiCentral = route.Coordinate{Latitude: 13.0827, Longitude: 80.2707}
	marinaBeach    = route.Coordinate{Latitude: 13.0500, Longitude: 80.2824}
)

type sessionFixture struct {
	session    *RouteSession
	clock      *clockwork.FakeClock
	rec        *recorder
	geocoder   *fakeGeocoder
	ranker     *fakeRanker
	directions *fakeDirections
	publisher  *recordingPublisher
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		clock: clockwork.NewFakeClock(),
		rec:   &recorder{},
		geocoder: &fakeGeocoder{places: map[string]route.Coordinate{
			"Chennai Central": chennaiCentral,
			"Marina Beach":    marinaBeach,
		}},
		ranker: &fakeRanker{candidate: route.SafetyCandidate{Name: "Route A", SafetyScore: 8.5}},
		directions: &fakeDirections{result: route.Directions{
			Path:  []route.Coordinate{chennaiCentral, {Latitude: 13.07, Longitude: 80.275}, marinaBeach},
			Steps: testSteps,
		}},
		publisher: &recordingPublisher{},
	}
	f.session = NewRouteSession(
		uuid.New(),
		Collaborators{Geocoder: f.geocoder, Ranker: f.ranker, Directions: f.directions},
		f.rec,
		f.rec,
		f.publisher,
		f.clock,
		NarratorConfig{},
		zap.NewNop(),
	)
	return f
}

func (f *sessionFixture) status() session.Status {
	s, _ := f.session.Status()
	return s
}

func (f *sessionFixture) narrateToArrival(t *testing.T, steps int) {
	t.Helper()
	advance(t, f.clock, DefaultInitialDelay)
	for i := 0; i < steps; i++ {
		advance(t, f.clock, DefaultStepDelay)
	}
	require.Eventually(t, func() bool { return f.status() == session.StatusArrived }, 2*time.Second, 5*time.Millisecond)
}

func TestRouteSession_PlanAndNarrate(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	planned, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)

	assert.Equal(t, session.StatusRouteReady, f.status())
	assert.Equal(t, 8.5, planned.ChosenCandidate().SafetyScore)
	assert.GreaterOrEqual(t, len(planned.PathPoints()), 2)
	assert.Equal(t, testSteps, planned.Steps(), "step order must match the directions response")

	assert.Equal(t, []string{
		"control:false",
		"speak:Finding safest route from Chennai Central to Marina Beach",
		"clear",
		"draw:3",
		"marker:Start: Chennai Central",
		"marker:Destination: Marina Beach",
		"fit",
		"control:true",
		"speak:Safest route found with score 8.5.",
	}, f.rec.Log())

	require.NoError(t, f.session.StartNavigation(ctx))
	assert.Equal(t, session.StatusNarrating, f.status())
	f.narrateToArrival(t, len(testSteps))

	speech := f.rec.Speech()[2:]
	assert.Len(t, speech, len(testSteps)+2)
	assert.Equal(t, "You have arrived safely at Marina Beach.", speech[len(speech)-1])
	assert.Equal(t, []string{EventRoutePlanned, EventNavigationStarted, EventNavigationArrived}, f.publisher.Types())
}

func TestRouteSession_RejectsEmptyInputWithoutCalls(t *testing.T) {
	cases := []struct{ start, end string }{
		{"", "Marina Beach"},
		{"Chennai Central", "   "},
		{"\t", "\n"},
	}
	for _, tc := range cases {
		f := newSessionFixture()
		_, err := f.session.PlanRoute(context.Background(), tc.start, tc.end)

		assert.Equal(t, route.KindValidation, route.KindOf(err))
		assert.Equal(t, session.StatusIdle, f.status())
		assert.Zero(t, f.geocoder.calls.Load())
		assert.Zero(t, f.ranker.calls.Load())
		assert.Zero(t, f.directions.calls.Load())
		assert.Empty(t, f.rec.Log())
	}
}

func TestRouteSession_GeocodeFailure(t *testing.T) {
	f := newSessionFixture()

	_, err := f.session.PlanRoute(context.Background(), "Atlantis", "Marina Beach")
	assert.Equal(t, route.KindNotFound, route.KindOf(err))

	status, reason := f.session.Status()
	assert.Equal(t, session.StatusFailed, status)
	assert.Equal(t, route.UserMessage(err), reason)
	assert.Zero(t, f.ranker.calls.Load())
	assert.Zero(t, f.directions.calls.Load())
	assert.NotContains(t, f.rec.Log(), "clear")
	assert.Equal(t, []string{EventPlanFailed}, f.publisher.Types())
}

func TestRouteSession_CollaboratorFailures(t *testing.T) {
	t.Run("ranker", func(t *testing.T) {
		f := newSessionFixture()
		f.ranker.err = route.NewNoRouteFoundError("Invalid location entered! Please try again.")

		_, err := f.session.PlanRoute(context.Background(), "Chennai Central", "Marina Beach")
		assert.Equal(t, route.KindNoRouteFound, route.KindOf(err))
		assert.Equal(t, session.StatusFailed, f.status())
		assert.Zero(t, f.directions.calls.Load())
	})

	t.Run("directions", func(t *testing.T) {
		f := newSessionFixture()
		f.directions.err = route.NewNoGeometryError("no features")

		_, err := f.session.PlanRoute(context.Background(), "Chennai Central", "Marina Beach")
		assert.Equal(t, route.KindNoGeometry, route.KindOf(err))
		assert.Equal(t, session.StatusFailed, f.status())
		assert.Nil(t, f.session.Snapshot().Route)
	})

	t.Run("single point path", func(t *testing.T) {
		f := newSessionFixture()
		f.directions.result.Path = f.directions.result.Path[:1]

		_, err := f.session.PlanRoute(context.Background(), "Chennai Central", "Marina Beach")
		assert.Equal(t, route.KindNoGeometry, route.KindOf(err))
		assert.Equal(t, session.StatusFailed, f.status())
	})
}

func TestRouteSession_ReplanAfterFailure(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	_, err := f.session.PlanRoute(ctx, "Atlantis", "Marina Beach")
	require.Error(t, err)

	_, err = f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)

	status, reason := f.session.Status()
	assert.Equal(t, session.StatusRouteReady, status)
	assert.Empty(t, reason)
}

func TestRouteSession_NewPlanCancelsNarrationFirst(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	_, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)
	require.NoError(t, f.session.StartNavigation(ctx))
	advance(t, f.clock, DefaultInitialDelay)
	require.Eventually(t, func() bool { return len(f.rec.Speech()) == 4 }, time.Second, 5*time.Millisecond)

	first := f.session.narration
	require.NotNil(t, first)

	cancelledBeforeRender := false
	f.rec.onClear = func() { cancelledBeforeRender = first.Cancelled() }

	_, err = f.session.PlanRoute(ctx, "Marina Beach", "Chennai Central")
	require.NoError(t, err)
	assert.True(t, cancelledBeforeRender)
	assert.Equal(t, session.StatusRouteReady, f.status())

	spoken := len(f.rec.Speech())
	f.clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, f.rec.Speech(), spoken, "old narration must stay silent")
	assert.NotContains(t, f.rec.Speech(), "You have arrived safely at Marina Beach.")
	assert.Equal(t, session.StatusRouteReady, f.status())
}

func TestRouteSession_EmptyStepsArriveImmediately(t *testing.T) {
	f := newSessionFixture()
	f.directions.result.Steps = nil
	ctx := context.Background()

	_, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)
	require.NoError(t, f.session.StartNavigation(ctx))

	assert.Equal(t, session.StatusArrived, f.status())
	speech := f.rec.Speech()
	assert.Equal(t, "You have arrived safely at Marina Beach.", speech[len(speech)-1])
	assert.NotContains(t, speech, "Starting turn by turn navigation.")
}

func TestRouteSession_CancelNavigation(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	require.NoError(t, f.session.CancelNavigation(ctx), "cancel outside narration is a no-op")
	assert.Equal(t, session.StatusIdle, f.status())

	_, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)
	require.NoError(t, f.session.StartNavigation(ctx))
	advance(t, f.clock, DefaultInitialDelay)
	require.Eventually(t, func() bool { return len(f.rec.Speech()) == 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.session.CancelNavigation(ctx))
	require.NoError(t, f.session.CancelNavigation(ctx))
	assert.Equal(t, session.StatusRouteReady, f.status())

	f.clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, f.rec.Speech(), 4)
	assert.Equal(t, session.StatusRouteReady, f.status())

	require.NoError(t, f.session.StartNavigation(ctx), "a cancelled route can be narrated again")
	f.narrateToArrival(t, len(testSteps))
}

func TestRouteSession_StartNavigationRequiresRoute(t *testing.T) {
	f := newSessionFixture()
	err := f.session.StartNavigation(context.Background())
	assert.True(t, errors.Is(err, session.ErrInvalidTransition))
}

func TestRouteSession_SupersededPlanIsDiscarded(t *testing.T) {
	f := newSessionFixture()
	f.geocoder.places["Slow Place"] = route.Coordinate{Latitude: 12.9, Longitude: 80.2}
	gate := make(chan struct{})
	f.geocoder.gates = map[string]chan struct{}{"Slow Place": gate}
	f.geocoder.entered = make(chan string, 1)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.session.PlanRoute(ctx, "Slow Place", "Marina Beach")
		errCh <- err
	}()
	<-f.geocoder.entered

	newer, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)
	close(gate)

	assert.ErrorIs(t, <-errCh, ErrPlanSuperseded)
	assert.Equal(t, session.StatusRouteReady, f.status())
	snap := f.session.Snapshot()
	require.NotNil(t, snap.Route)
	assert.Equal(t, newer.OriginLabel(), snap.Route.Origin)
}

func TestRouteSession_ArrivedSessionNeedsNewPlan(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	_, err := f.session.PlanRoute(ctx, "Chennai Central", "Marina Beach")
	require.NoError(t, err)
	require.NoError(t, f.session.StartNavigation(ctx))
	f.narrateToArrival(t, len(testSteps))

	assert.ErrorIs(t, f.session.StartNavigation(ctx), session.ErrInvalidTransition)
	assert.Equal(t, session.StatusArrived, f.status())
	require.NoError(t, f.session.CancelNavigation(ctx))
	assert.Equal(t, session.StatusArrived, f.status(), "cancel after arrival is a no-op")

	_, err = f.session.PlanRoute(ctx, "Marina Beach", "Chennai Central")
	require.NoError(t, err)
	assert.Equal(t, session.StatusRouteReady, f.status())
}
