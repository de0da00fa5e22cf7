package route

import (
	"html"
	"regexp"
	"strings"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// SafetyCandidate is the corridor chosen by the safety ranker. The score is
// opaque: higher is safer, the scale is the ranker's business.
type SafetyCandidate struct {
	Name        string  `json:"name"`
	SafetyScore float64 `json:"safety_score"`
}

// NavigationStep is one turn-by-turn instruction as returned by the
// directions service. Instruction may contain markup.
type NavigationStep struct {
	Instruction string  `json:"instruction"`
	DistanceM   float64 `json:"distance_m,omitempty"`
	DurationS   float64 `json:"duration_s,omitempty"`
}

// SpeakableText strips markup tags and non-breaking-space entities so the
// instruction can be handed to a speech engine.
func (s NavigationStep) SpeakableText() string {
	text := markupTag.ReplaceAllString(s.Instruction, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}

// Directions is the geometry and step list for a pair of coordinates.
type Directions struct {
	Path  []Coordinate
	Steps []NavigationStep
}

// NavigableRoute is the reconciled result of a successful plan. It is built
// once and never modified afterwards.
type NavigableRoute struct {
	pathPoints       []Coordinate
	steps            []NavigationStep
	start            Coordinate
	end              Coordinate
	originLabel      string
	destinationLabel string
	chosen           SafetyCandidate
}

// NewNavigableRoute validates and assembles a route. The slices are copied so
// later changes by the caller cannot reach the route.
func NewNavigableRoute(
	origin, destination PlaceQuery,
	start, end Coordinate,
	chosen SafetyCandidate,
	directions Directions,
) (*NavigableRoute, error) {
	if len(directions.Path) < 2 {
		return nil, NewNoGeometryError("route path needs at least two points")
	}
	for _, p := range directions.Path {
		if err := p.Validate(); err != nil {
			return nil, NewNoGeometryError("route path contains an invalid coordinate")
		}
	}

	path := make([]Coordinate, len(directions.Path))
	copy(path, directions.Path)
	steps := make([]NavigationStep, len(directions.Steps))
	copy(steps, directions.Steps)

	return &NavigableRoute{
		pathPoints:       path,
		steps:            steps,
		start:            start,
		end:              end,
		originLabel:      origin.RawText,
		destinationLabel: destination.RawText,
		chosen:           chosen,
	}, nil
}

// PathPoints returns a copy of the path geometry.
func (r *NavigableRoute) PathPoints() []Coordinate {
	out := make([]Coordinate, len(r.pathPoints))
	copy(out, r.pathPoints)
	return out
}

// Steps returns a copy of the ordered step list.
func (r *NavigableRoute) Steps() []NavigationStep {
	out := make([]NavigationStep, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *NavigableRoute) Start() Coordinate { return r.start }

func (r *NavigableRoute) End() Coordinate { return r.end }

func (r *NavigableRoute) OriginLabel() string { return r.originLabel }

func (r *NavigableRoute) DestinationLabel() string { return r.destinationLabel }

func (r *NavigableRoute) ChosenCandidate() SafetyCandidate { return r.chosen }

// Bounds returns the box enclosing the path.
func (r *NavigableRoute) Bounds() Bounds {
	b, _ := BoundsOf(r.pathPoints)
	return b
}
