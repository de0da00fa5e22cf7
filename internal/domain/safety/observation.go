package safety

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

// Observation is a surveyed safety sample at a point. All factors are
// normalized to [0, 1]: lighting and crowd grow with safety, crime rate and
// police distance shrink with it.
type Observation struct {
	ID             uuid.UUID `json:"id"`
	Latitude       float64   `json:"latitude" toml:"latitude"`
	Longitude      float64   `json:"longitude" toml:"longitude"`
	Lighting       float64   `json:"lighting" toml:"lighting"`
	Crowd          float64   `json:"crowd" toml:"crowd"`
	PoliceDistance float64   `json:"police_distance" toml:"police_distance"`
	CrimeRate      float64   `json:"crime_rate" toml:"crime_rate"`
	Source         string    `json:"source,omitempty" toml:"source"`
	ObservedAt     time.Time `json:"observed_at"`
}

// Validate checks the location and factor ranges.
func (o Observation) Validate() error {
	if _, err := route.NewCoordinate(o.Latitude, o.Longitude); err != nil {
		return err
	}
	factors := map[string]float64{
		"lighting":        o.Lighting,
		"crowd":           o.Crowd,
		"police_distance": o.PoliceDistance,
		"crime_rate":      o.CrimeRate,
	}
	for name, v := range factors {
		if v < 0 || v > 1 {
			return route.NewValidationError(fmt.Sprintf("%s must be within [0, 1], got %v", name, v))
		}
	}
	return nil
}

// Normalize fills the id and timestamp of a freshly reported observation.
func (o Observation) Normalize(now time.Time) Observation {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = now.UTC()
	}
	return o
}
