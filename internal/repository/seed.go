package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/safety"
)

type seedFile struct {
	Observations []safety.Observation `toml:"observation"`
}

// LoadSeedFile reads [[observation]] tables from a TOML file and validates
// every entry.
func LoadSeedFile(path string) ([]safety.Observation, error) {
	var f seedFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("seed file %s has unknown keys: %v", path, undecoded)
	}
	for i, o := range f.Observations {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("seed observation %d: %w", i, err)
		}
	}
	return f.Observations, nil
}

// SeedIfEmpty imports the seed file when the store holds no observations.
// It returns the number of imported rows.
func SeedIfEmpty(ctx context.Context, repo safety.ObservationRepository, path string, now time.Time, log *zap.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info("safety observations already present, skipping seed", zap.Int64("count", count))
		return 0, nil
	}

	observations, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	for i := range observations {
		observations[i] = observations[i].Normalize(now)
		if observations[i].Source == "" {
			observations[i].Source = "seed"
		}
	}
	if err := repo.SaveBatch(ctx, observations); err != nil {
		return 0, err
	}

	log.Info("imported safety seed data",
		zap.String("file", path),
		zap.Int("count", len(observations)),
	)
	return len(observations), nil
}
