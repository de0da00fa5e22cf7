package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/service-navigation/internal/adapter/geocoder"
	"github.com/saferoute/service-navigation/internal/adapter/ranker"
	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/safety"
)

const (
	// InvalidLocationMessage is returned when either place cannot be geocoded.
	InvalidLocationMessage = "Invalid location entered! Please try again."
	// NoSafetyDataMessage is returned when the observation store is empty.
	NoSafetyDataMessage = "No safety data available to rank routes."

	// corridorOffset shifts the alternative corridors, in degrees.
	corridorOffset = 0.01
)

// ObservationStats summarizes the safety observation store.
type ObservationStats struct {
	Count int64 `json:"count"`
}

// SafetyService ranks candidate corridors between two places using stored
// safety observations.
type SafetyService struct {
	repo     safety.ObservationRepository
	geocoder geocoder.Geocoder
	scoring  safety.ScoringStrategy
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewSafetyService creates a new SafetyService.
func NewSafetyService(
	repo safety.ObservationRepository,
	geo geocoder.Geocoder,
	scoring safety.ScoringStrategy,
	clock clockwork.Clock,
	logger *zap.Logger,
) *SafetyService {
	return &SafetyService{
		repo:     repo,
		geocoder: geo,
		scoring:  scoring,
		clock:    clock,
		logger:   logger,
	}
}

// FindSafestRoute geocodes both places, scores three corridors and returns
// the safest. Unresolvable places and an empty store produce an error payload
// rather than a Go error.
func (s *SafetyService) FindSafestRoute(ctx context.Context, req ranker.Request) (*ranker.Response, error) {
	origin, err := route.NewPlaceQuery(req.Start, "start")
	if err != nil {
		return nil, err
	}
	destination, err := route.NewPlaceQuery(req.End, "end")
	if err != nil {
		return nil, err
	}

	var (
		start, end route.Coordinate
		g          errgroup.Group
	)
	g.Go(func() error {
		c, err := s.geocoder.Resolve(ctx, origin.RawText)
		start = c
		return err
	})
	g.Go(func() error {
		c, err := s.geocoder.Resolve(ctx, destination.RawText)
		end = c
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Info("could not geocode corridor endpoints",
			zap.String("start", origin.RawText),
			zap.String("end", destination.RawText),
			zap.Error(err),
		)
		return &ranker.Response{Error: InvalidLocationMessage}, nil
	}

	candidates := corridors(start, end)
	for i := range candidates {
		first := candidates[i].Path[0]
		obs, err := s.repo.Nearest(ctx, first[0], first[1])
		if err != nil {
			if errors.Is(err, safety.ErrNoObservations) {
				return &ranker.Response{Error: NoSafetyDataMessage}, nil
			}
			return nil, fmt.Errorf("failed to find nearest observation: %w", err)
		}
		score, err := s.scoring.Score(*obs)
		if err != nil {
			return nil, err
		}
		candidates[i].SafetyScore = score
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].SafetyScore > candidates[best].SafetyScore {
			best = i
		}
	}
	safest := candidates[best]

	s.logger.Info("ranked corridors",
		zap.String("start", origin.RawText),
		zap.String("end", destination.RawText),
		zap.String("safest", safest.Name),
		zap.Float64("safety_score", safest.SafetyScore),
	)
	return &ranker.Response{SafestRoute: &safest, AllRoutes: candidates}, nil
}

// corridors builds the three simulated corridors. Path points are
// (latitude, longitude) pairs.
func corridors(start, end route.Coordinate) []ranker.Candidate {
	return []ranker.Candidate{
		{
			Name: "Route A",
			Path: [][2]float64{
				{start.Latitude, start.Longitude},
				{end.Latitude, end.Longitude},
			},
		},
		{
			Name: "Route B",
			Path: [][2]float64{
				{start.Latitude + corridorOffset, start.Longitude},
				{end.Latitude, end.Longitude + corridorOffset},
			},
		},
		{
			Name: "Route C",
			Path: [][2]float64{
				{start.Latitude, start.Longitude + corridorOffset},
				{end.Latitude + corridorOffset, end.Longitude},
			},
		},
	}
}

// ImportObservations validates and stores a batch of observations.
func (s *SafetyService) ImportObservations(ctx context.Context, observations []safety.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, route.NewValidationError("at least one observation is required")
	}
	now := s.clock.Now()
	batch := make([]safety.Observation, 0, len(observations))
	for i, o := range observations {
		if err := o.Validate(); err != nil {
			return 0, fmt.Errorf("observation %d: %w", i, err)
		}
		batch = append(batch, o.Normalize(now))
	}
	if err := s.repo.SaveBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to save observations: %w", err)
	}

	s.logger.Info("imported safety observations", zap.Int("count", len(batch)))
	return len(batch), nil
}

// ReportObservation stores a single crowd-sourced observation.
func (s *SafetyService) ReportObservation(ctx context.Context, o safety.Observation) error {
	_, err := s.ImportObservations(ctx, []safety.Observation{o})
	return err
}

// Stats returns the observation store summary.
func (s *SafetyService) Stats(ctx context.Context) (*ObservationStats, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}
	return &ObservationStats{Count: count}, nil
}
