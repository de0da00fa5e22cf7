package safety

import (
	"fmt"
	"math"
)

// ScoringStrategy defines how an observation turns into a corridor score.
type ScoringStrategy interface {
	// Score returns the safety score for the given observation. Higher is safer.
	Score(obs Observation) (float64, error)
}

// WeightedScoringStrategy implements the default weighted safety formula.
type WeightedScoringStrategy struct {
	LightingWeight float64
	CrowdWeight    float64
	CrimeWeight    float64
	PoliceWeight   float64
}

// NewWeightedScoringStrategy creates the strategy with the standard weights.
func NewWeightedScoringStrategy() *WeightedScoringStrategy {
	return &WeightedScoringStrategy{
		LightingWeight: 0.4,
		CrowdWeight:    0.3,
		CrimeWeight:    0.2,
		PoliceWeight:   0.1,
	}
}

// Score computes the safety score rounded to two decimals.
//
// Formula:
//   - lighting: 0.4 × lighting
//   - crowd: 0.3 × crowd
//   - crime: 0.2 × (1 − crime rate)
//   - police: 0.1 × (1 − police distance)
func (s *WeightedScoringStrategy) Score(obs Observation) (float64, error) {
	if err := obs.Validate(); err != nil {
		return 0, fmt.Errorf("cannot score observation: %w", err)
	}

	score := s.LightingWeight*obs.Lighting +
		s.CrowdWeight*obs.Crowd +
		s.CrimeWeight*(1-obs.CrimeRate) +
		s.PoliceWeight*(1-obs.PoliceDistance)

	return math.Round(score*100) / 100, nil
}
