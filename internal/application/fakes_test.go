package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/safety"
)

// recorder captures speech and view commands in one ordered log.
type recorder struct {
	mu      sync.Mutex
	log     []string
	speech  []string
	onClear func()
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
}

func (r *recorder) Speak(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "speak:"+text)
	r.speech = append(r.speech, text)
}

func (r *recorder) ClearPreviousPath() {
	r.mu.Lock()
	hook := r.onClear
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	r.add("clear")
}

func (r *recorder) DrawPath(points []route.Coordinate) {
	r.add(fmt.Sprintf("draw:%d", len(points)))
}

func (r *recorder) PlaceMarker(_ route.Coordinate, label string) {
	r.add("marker:" + label)
}

func (r *recorder) FitView(route.Bounds) {
	r.add("fit")
}

func (r *recorder) SetNavigationControlEnabled(enabled bool) {
	r.add(fmt.Sprintf("control:%t", enabled))
}

func (r *recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recorder) Speech() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.speech...)
}

type fakeGeocoder struct {
	places map[string]route.Coordinate
	gates  map[string]chan struct{}
	// entered is signalled when a gated lookup starts waiting.
	entered chan string
	calls   atomic.Int32
}

func (g *fakeGeocoder) Resolve(ctx context.Context, placeText string) (route.Coordinate, error) {
	g.calls.Add(1)
	if gate, ok := g.gates[placeText]; ok {
		if g.entered != nil {
			g.entered <- placeText
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return route.Coordinate{}, route.NewTransportError("geocoder", ctx.Err())
		}
	}
	for name, c := range g.places {
		if strings.EqualFold(name, placeText) {
			return c, nil
		}
	}
	return route.Coordinate{}, route.NewNotFoundError(placeText)
}

type fakeRanker struct {
	candidate route.SafetyCandidate
	err       error
	calls     atomic.Int32
}

func (r *fakeRanker) Rank(context.Context, string, string) (route.SafetyCandidate, error) {
	r.calls.Add(1)
	if r.err != nil {
		return route.SafetyCandidate{}, r.err
	}
	return r.candidate, nil
}

type fakeDirections struct {
	result route.Directions
	err    error
	calls  atomic.Int32
}

func (d *fakeDirections) Directions(context.Context, route.Coordinate, route.Coordinate) (route.Directions, error) {
	d.calls.Add(1)
	if d.err != nil {
		return route.Directions{}, d.err
	}
	return d.result, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, _ string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type memoryObservationRepo struct {
	mu           sync.Mutex
	observations []safety.Observation
}

func (r *memoryObservationRepo) Nearest(_ context.Context, lat, lng float64) (*safety.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.observations) == 0 {
		return nil, safety.ErrNoObservations
	}
	best := 0
	bestDist := -1.0
	for i, o := range r.observations {
		d := (o.Latitude-lat)*(o.Latitude-lat) + (o.Longitude-lng)*(o.Longitude-lng)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	o := r.observations[best]
	return &o, nil
}

func (r *memoryObservationRepo) SaveBatch(_ context.Context, observations []safety.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, observations...)
	return nil
}

func (r *memoryObservationRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.observations)), nil
}
