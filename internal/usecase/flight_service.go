package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/pkg/logger"
)

// ErrHistoryUnavailable is returned when no history store is configured
var ErrHistoryUnavailable = errors.New("flight history is not configured")

const defaultHistoryLimit = 50

// FlightService is the boundary between transports and the repositories
type FlightService struct {
	// held from Save until Publish so events leave in commit order
	saveMu sync.Mutex

	flights   repository.FlightRecordRepository
	airports  repository.AirportRepository
	history   repository.FlightHistoryRepository
	publisher Publisher
	logger    logger.Logger
}

// NewFlightService creates a new flight service. history may be nil.
func NewFlightService(
	flights repository.FlightRecordRepository,
	airports repository.AirportRepository,
	history repository.FlightHistoryRepository,
	publisher Publisher,
	logger logger.Logger,
) *FlightService {
	return &FlightService{
		flights:   flights,
		airports:  airports,
		history:   history,
		publisher: publisher,
		logger:    logger,
	}
}

// GetFlights returns the flights matching criteria
func (s *FlightService) GetFlights(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error) {
	flights, err := s.flights.Filter(ctx, criteria)
	if err != nil {
		s.logger.Error("Failed to filter flights", "criteria", criteria, "error", err)
		return nil, err
	}
	return flights, nil
}

// GetAirports returns every airport
func (s *FlightService) GetAirports(ctx context.Context) ([]entity.Airport, error) {
	airports, err := s.airports.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list airports", "error", err)
		return nil, err
	}
	return airports, nil
}

// SaveFlight persists the flight and, once the write has succeeded, publishes
// the saved snapshot. Publication never fails the save. Saves are serialized,
// so subscribers see updates in the order they were committed.
func (s *FlightService) SaveFlight(ctx context.Context, flight entity.FlightRecord) (string, error) {
	isNew := flight.IsNew()

	s.saveMu.Lock()
	id, err := s.flights.Save(ctx, &flight)
	if err != nil {
		s.saveMu.Unlock()
		s.logger.Error("Failed to save flight", "flightNumber", flight.FlightNumber, "error", err)
		return "", err
	}
	if s.publisher != nil {
		if event, ok := s.publisher.Publish(flight); ok {
			s.logger.Debug("Published flight update", "flightNumber", id, "eventId", event.ID)
		}
	}
	s.saveMu.Unlock()

	s.logger.Info("Flight saved", "flightNumber", id, "new", isNew)
	return id, nil
}

// FlightHistory returns the latest published updates for one flight
func (s *FlightService) FlightHistory(ctx context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := s.history.FindByFlightNumber(ctx, flightNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", flightNumber, err)
	}
	return events, nil
}
