package repository

import (
	"context"

	"flightboard-service/internal/domain/entity"
)

// FlightRecordRepository defines the interface for flight record operations
type FlightRecordRepository interface {
	// Filter returns the flights matching criteria, wildcards included
	Filter(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error)
	// Save inserts or updates the flight and returns the stored identifier
	Save(ctx context.Context, flight *entity.FlightRecord) (string, error)
	// SaveBatch writes all flights in one unit of work
	SaveBatch(ctx context.Context, flights []entity.FlightRecord) ([]string, error)
}

// AirportRepository defines the interface for airport operations
type AirportRepository interface {
	List(ctx context.Context) ([]entity.Airport, error)
	SaveAll(ctx context.Context, airports []entity.Airport) (int64, error)
}

// FlightHistoryRepository keeps an append-only log of published flight updates
type FlightHistoryRepository interface {
	Append(ctx context.Context, event entity.FlightUpdated) error
	FindByFlightNumber(ctx context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error)
}
