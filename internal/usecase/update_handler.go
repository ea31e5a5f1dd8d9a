package usecase

import (
	"context"

	"flightboard-service/internal/domain/entity"
)

// UpdateHandler defines the interface for consumers of published flight updates
type UpdateHandler interface {
	// CanHandle determines if this handler wants the given event
	CanHandle(event entity.FlightUpdated) bool

	// Handle processes the event. Errors are logged by the router and never
	// reach the writer that published the update.
	Handle(ctx context.Context, event entity.FlightUpdated) error
}

// UpdateRouter routes flight updates to the registered handlers
type UpdateRouter interface {
	// Register registers a handler
	Register(handler UpdateHandler)

	// GetHandlers returns every handler that accepts the event, in registration order
	GetHandlers(event entity.FlightUpdated) []UpdateHandler
}

// Publisher hands a saved snapshot to the broadcaster
type Publisher interface {
	Publish(flight entity.FlightRecord) (entity.FlightUpdated, bool)
}
