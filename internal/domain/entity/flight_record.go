// internal/domain/entity/flight_record.go
package entity

import (
	"time"
)

// FlightRecord is the current state of one tracked flight. FlightNumber is
// assigned by the store on the first successful save; an empty FlightNumber
// marks a record that has never been saved.
type FlightRecord struct {
	FlightNumber   string    `json:"flightNumber" bson:"flightNumber"`
	TakeoffAirport string    `json:"takeoffAirport" bson:"takeoffAirport"`
	LandingAirport string    `json:"landingAirport" bson:"landingAirport"`
	Status         string    `json:"status" bson:"status"`
	TakeoffTime    time.Time `json:"takeoffTime" bson:"takeoffTime"`
	LandingTime    time.Time `json:"landingTime" bson:"landingTime"`
	DelayMinutes   int32     `json:"delayMinutes" bson:"delayMinutes"`
}

// EntityName identifies the record in the field descriptor registry
func (FlightRecord) EntityName() string { return "FlightRecord" }

// IsNew reports whether the record still needs an identifier from the store
func (f FlightRecord) IsNew() bool {
	return f.FlightNumber == ""
}
