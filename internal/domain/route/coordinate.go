package route

import (
	"fmt"
	"math"
	"strings"
)

// Coordinate is a WGS84 point in (latitude, longitude) order.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate validates the axis bounds and returns the point.
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lng}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks latitude ∈ [-90, 90] and longitude ∈ [-180, 180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return NewValidationError(fmt.Sprintf("latitude %v out of range", c.Latitude))
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return NewValidationError(fmt.Sprintf("longitude %v out of range", c.Longitude))
	}
	return nil
}

// LonLat formats the point as "lon,lat", the order most routing APIs expect.
func (c Coordinate) LonLat() string {
	return fmt.Sprintf("%.6f,%.6f", c.Longitude, c.Latitude)
}

// Bounds is the smallest box enclosing a set of coordinates.
type Bounds struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// BoundsOf computes the enclosing box of points. It returns false for an
// empty slice.
func BoundsOf(points []Coordinate) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b := Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b.SouthWest.Latitude = math.Min(b.SouthWest.Latitude, p.Latitude)
		b.SouthWest.Longitude = math.Min(b.SouthWest.Longitude, p.Longitude)
		b.NorthEast.Latitude = math.Max(b.NorthEast.Latitude, p.Latitude)
		b.NorthEast.Longitude = math.Max(b.NorthEast.Longitude, p.Longitude)
	}
	return b, true
}

// PlaceQuery is a traveler-entered place name.
type PlaceQuery struct {
	RawText string
}

// NewPlaceQuery trims text and rejects it when nothing is left.
func NewPlaceQuery(text, field string) (PlaceQuery, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return PlaceQuery{}, NewValidationError(field + " location is required")
	}
	return PlaceQuery{RawText: trimmed}, nil
}

func (q PlaceQuery) String() string {
	return q.RawText
}
