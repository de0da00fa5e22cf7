package safety

import (
	"context"
	"errors"
)

// ErrNoObservations is returned when the store holds no safety data.
var ErrNoObservations = errors.New("no safety observations available")

// ObservationRepository defines the persistence contract for safety observations.
type ObservationRepository interface {
	// Nearest returns the observation closest to the given point, or
	// ErrNoObservations when the store is empty.
	Nearest(ctx context.Context, lat, lng float64) (*Observation, error)

	// SaveBatch persists observations in one go.
	SaveBatch(ctx context.Context, observations []Observation) error

	// Count returns the number of stored observations.
	Count(ctx context.Context) (int64, error)
}
