package router

import (
	"context"
	"fmt"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/infrastructure/broadcast"
	"flightboard-service/internal/usecase"
	"flightboard-service/pkg/logger"
)

// UpdateRouter routes published flight updates to the registered handlers
type UpdateRouter struct {
	handlers []usecase.UpdateHandler
	logger   logger.Logger
}

// NewUpdateRouter creates a new update router
func NewUpdateRouter(logger logger.Logger) *UpdateRouter {
	return &UpdateRouter{
		handlers: make([]usecase.UpdateHandler, 0),
		logger:   logger,
	}
}

// Register registers a handler
func (r *UpdateRouter) Register(handler usecase.UpdateHandler) {
	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered update handler", "handler", fmt.Sprintf("%T", handler))
}

// GetHandlers returns every handler that accepts the event
func (r *UpdateRouter) GetHandlers(event entity.FlightUpdated) []usecase.UpdateHandler {
	var matched []usecase.UpdateHandler
	for _, handler := range r.handlers {
		if handler.CanHandle(event) {
			matched = append(matched, handler)
		}
	}
	return matched
}

// Dispatch hands the event to each matching handler. A failing handler does
// not stop the others.
func (r *UpdateRouter) Dispatch(ctx context.Context, event entity.FlightUpdated) {
	for _, handler := range r.GetHandlers(event) {
		if err := handler.Handle(ctx, event); err != nil {
			r.logger.Error("Update handler failed",
				"handler", fmt.Sprintf("%T", handler),
				"eventId", event.ID,
				"flightNumber", event.Flight.FlightNumber,
				"error", err)
		}
	}
}

// Run consumes sub until it closes or ctx is cancelled. The subscription is
// closed on return.
func (r *UpdateRouter) Run(ctx context.Context, sub *broadcast.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			r.Dispatch(ctx, event)
		}
	}
}

var _ usecase.UpdateRouter = (*UpdateRouter)(nil)
