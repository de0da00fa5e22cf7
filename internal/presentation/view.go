package presentation

import (
	"sync"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

// Marker is a labelled point on the map.
type Marker struct {
	At    route.Coordinate `json:"at"`
	Label string           `json:"label"`
}

// ViewState is what a client should currently display.
type ViewState struct {
	Path              []route.Coordinate `json:"path"`
	Markers           []Marker           `json:"markers"`
	Bounds            *route.Bounds      `json:"bounds,omitempty"`
	NavigationEnabled bool               `json:"navigation_enabled"`
	Revision          uint64             `json:"revision"`
}

// ViewRecorder keeps the latest render state of one session so that clients
// can poll it. It is safe for concurrent use.
type ViewRecorder struct {
	mu    sync.RWMutex
	state ViewState
}

// NewViewRecorder creates an empty ViewRecorder.
func NewViewRecorder() *ViewRecorder {
	return &ViewRecorder{}
}

// ClearPreviousPath removes the drawn path and its markers.
func (v *ViewRecorder) ClearPreviousPath() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Path = nil
	v.state.Markers = nil
	v.state.Bounds = nil
	v.state.Revision++
}

func (v *ViewRecorder) DrawPath(points []route.Coordinate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Path = append([]route.Coordinate(nil), points...)
	v.state.Revision++
}

func (v *ViewRecorder) PlaceMarker(at route.Coordinate, label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Markers = append(v.state.Markers, Marker{At: at, Label: label})
	v.state.Revision++
}

func (v *ViewRecorder) FitView(bounds route.Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b := bounds
	v.state.Bounds = &b
	v.state.Revision++
}

func (v *ViewRecorder) SetNavigationControlEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.NavigationEnabled = enabled
	v.state.Revision++
}

// Snapshot returns a deep copy of the current view.
func (v *ViewRecorder) Snapshot() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := v.state
	out.Path = append([]route.Coordinate(nil), v.state.Path...)
	out.Markers = append([]Marker(nil), v.state.Markers...)
	if v.state.Bounds != nil {
		b := *v.state.Bounds
		out.Bounds = &b
	}
	return out
}
