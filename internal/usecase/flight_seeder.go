package usecase

import (
	"context"
	"fmt"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/pkg/logger"
)

// FlightSeeder puts the configured demo flights on an empty board at startup
type FlightSeeder struct {
	flights repository.FlightRecordRepository
	logger  logger.Logger
}

// NewFlightSeeder creates a new flight seeder
func NewFlightSeeder(flights repository.FlightRecordRepository, logger logger.Logger) *FlightSeeder {
	return &FlightSeeder{
		flights: flights,
		logger:  logger,
	}
}

// Seed saves flights in one transaction and returns their flight numbers.
// A board that already holds flights is left untouched, and entries missing
// either airport are skipped.
func (s *FlightSeeder) Seed(ctx context.Context, flights []entity.FlightRecord) ([]string, error) {
	valid := make([]entity.FlightRecord, 0, len(flights))
	for _, f := range flights {
		if f.TakeoffAirport == "" || f.LandingAirport == "" {
			s.logger.Warn("Skipping flight without route", "flightNumber", f.FlightNumber)
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return []string{}, nil
	}

	existing, err := s.flights.Filter(ctx, entity.FilterCriteria{})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing flights: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("Board already has flights, skipping seed", "count", len(existing))
		return []string{}, nil
	}

	ids, err := s.flights.SaveBatch(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to seed flights: %w", err)
	}
	s.logger.Info("Flights seeded", "count", len(ids))
	return ids, nil
}
