package usecase

import (
	"context"
	"fmt"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/pkg/logger"
)

// HistoryRecorder appends every published flight update to the history store
type HistoryRecorder struct {
	history repository.FlightHistoryRepository
	logger  logger.Logger
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder(history repository.FlightHistoryRepository, logger logger.Logger) *HistoryRecorder {
	return &HistoryRecorder{
		history: history,
		logger:  logger,
	}
}

// CanHandle accepts flight updates that carry an identity
func (h *HistoryRecorder) CanHandle(event entity.FlightUpdated) bool {
	return event.Type == entity.FlightUpdatedType && event.Flight.FlightNumber != ""
}

// Handle stores the event
func (h *HistoryRecorder) Handle(ctx context.Context, event entity.FlightUpdated) error {
	if err := h.history.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to record history for %s: %w", event.Flight.FlightNumber, err)
	}
	h.logger.Debug("Recorded flight update", "flightNumber", event.Flight.FlightNumber, "eventId", event.ID)
	return nil
}
