package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saferoute/service-navigation/internal/domain/safety"
)

const insertBatchSize = 100

// ObservationModel is the GORM model for the safety_observations table.
type ObservationModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Latitude       float64   `gorm:"not null;index:idx_safety_observations_location"`
	Longitude      float64   `gorm:"not null;index:idx_safety_observations_location"`
	Lighting       float64   `gorm:"not null"`
	Crowd          float64   `gorm:"not null"`
	PoliceDistance float64   `gorm:"not null"`
	CrimeRate      float64   `gorm:"not null"`
	Source         string    `gorm:"size:100"`
	ObservedAt     time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ObservationModel) TableName() string {
	return "safety_observations"
}

// GormObservationRepository is the GORM-based implementation of
// safety.ObservationRepository.
type GormObservationRepository struct {
	db *gorm.DB
}

// NewGormObservationRepository creates a new GormObservationRepository.
func NewGormObservationRepository(db *gorm.DB) *GormObservationRepository {
	return &GormObservationRepository{db: db}
}

// Nearest returns the observation with the smallest squared degree distance
// to the point.
func (r *GormObservationRepository) Nearest(ctx context.Context, lat, lng float64) (*safety.Observation, error) {
	var model ObservationModel
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "(latitude - ?) * (latitude - ?) + (longitude - ?) * (longitude - ?)",
			Vars:               []interface{}{lat, lat, lng, lng},
			WithoutParentheses: true,
		}}).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, safety.ErrNoObservations
		}
		return nil, fmt.Errorf("failed to find nearest observation: %w", err)
	}
	obs := toDomainObservation(&model)
	return &obs, nil
}

// SaveBatch inserts observations in batches.
func (r *GormObservationRepository) SaveBatch(ctx context.Context, observations []safety.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	models := make([]ObservationModel, 0, len(observations))
	for _, o := range observations {
		models = append(models, toObservationModel(o))
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save observations: %w", err)
	}
	return nil
}

// Count returns the number of stored observations.
func (r *GormObservationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ObservationModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

func toObservationModel(o safety.Observation) ObservationModel {
	return ObservationModel{
		ID:             o.ID,
		Latitude:       o.Latitude,
		Longitude:      o.Longitude,
		Lighting:       o.Lighting,
		Crowd:          o.Crowd,
		PoliceDistance: o.PoliceDistance,
		CrimeRate:      o.CrimeRate,
		Source:         o.Source,
		ObservedAt:     o.ObservedAt,
	}
}

func toDomainObservation(m *ObservationModel) safety.Observation {
	return safety.Observation{
		ID:             m.ID,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		Lighting:       m.Lighting,
		Crowd:          m.Crowd,
		PoliceDistance: m.PoliceDistance,
		CrimeRate:      m.CrimeRate,
		Source:         m.Source,
		ObservedAt:     m.ObservedAt,
	}
}
