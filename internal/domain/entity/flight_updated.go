package entity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// FlightUpdatedType is the push event name delivered to subscribers
const FlightUpdatedType = "flightUpdated"

// FlightUpdated is published once per successful save
type FlightUpdated struct {
	ID          string       `json:"id" bson:"eventId"`
	Type        string       `json:"type" bson:"type"`
	Flight      FlightRecord `json:"flight" bson:"flight"`
	PublishedAt time.Time    `json:"publishedAt" bson:"publishedAt"`
}

// NewFlightUpdated wraps a saved snapshot in an event envelope
func NewFlightUpdated(flight FlightRecord) FlightUpdated {
	return FlightUpdated{
		ID:          ulid.Make().String(),
		Type:        FlightUpdatedType,
		Flight:      flight,
		PublishedAt: time.Now().UTC(),
	}
}
