package usecase

import (
	"context"
	"fmt"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/pkg/logger"
)

// AirportSeeder loads the configured airport list into the store at startup
type AirportSeeder struct {
	airports repository.AirportRepository
	logger   logger.Logger
}

// NewAirportSeeder creates a new airport seeder
func NewAirportSeeder(airports repository.AirportRepository, logger logger.Logger) *AirportSeeder {
	return &AirportSeeder{
		airports: airports,
		logger:   logger,
	}
}

// Seed upserts airports in one transaction. Entries without a code are skipped.
func (s *AirportSeeder) Seed(ctx context.Context, airports []entity.Airport) (int64, error) {
	valid := make([]entity.Airport, 0, len(airports))
	for _, a := range airports {
		if a.AirportCode == "" {
			s.logger.Warn("Skipping airport without code", "name", a.AirportName)
			continue
		}
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := s.airports.SaveAll(ctx, valid)
	if err != nil {
		return 0, fmt.Errorf("failed to seed airports: %w", err)
	}
	s.logger.Info("Airports seeded", "count", n)
	return n, nil
}
