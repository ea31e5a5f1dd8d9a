package repository

import (
	"time"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/infrastructure/mapping"
)

// Storage groups and the column names the stored procedures expect
const (
	GroupFlight       = "FLIGHT"
	GroupAirport      = "AIRPORT"
	GroupFilterFlight = "FILTERFLIGHT"
)

// NewRegistry registers the descriptors for every persisted entity and
// seals the registry.
func NewRegistry() (*mapping.Registry, error) {
	r := mapping.NewRegistry()

	flight := mapping.NewDescriptor[entity.FlightRecord](GroupFlight,
		mapping.String("FlightNumber", "FLIGHTNUMBER", func(f *entity.FlightRecord) *string { return &f.FlightNumber }, mapping.NullIfZero()),
		mapping.String("TakeoffAirport", "TAKEOFFAIRPORT", func(f *entity.FlightRecord) *string { return &f.TakeoffAirport }),
		mapping.String("LandingAirport", "LANDINGAIRPORT", func(f *entity.FlightRecord) *string { return &f.LandingAirport }),
		mapping.String("Status", "STATUS", func(f *entity.FlightRecord) *string { return &f.Status }),
		mapping.Time("TakeoffTime", "TAKEOFFTIME", func(f *entity.FlightRecord) *time.Time { return &f.TakeoffTime }, mapping.NullIfZero()),
		mapping.Time("LandingTime", "LANDINGTIME", func(f *entity.FlightRecord) *time.Time { return &f.LandingTime }, mapping.NullIfZero()),
		mapping.Int32("DelayMinutes", "DELAYMINUTES", func(f *entity.FlightRecord) *int32 { return &f.DelayMinutes }),
	)
	if err := mapping.Register(r, flight); err != nil {
		return nil, err
	}

	airport := mapping.NewDescriptor[entity.Airport](GroupAirport,
		mapping.String("AirportCode", "AIRPORTCODE", func(a *entity.Airport) *string { return &a.AirportCode }),
		mapping.String("AirportName", "AIRPORTNAME", func(a *entity.Airport) *string { return &a.AirportName }),
	)
	if err := mapping.Register(r, airport); err != nil {
		return nil, err
	}

	// criteria fields are NULL when they are wildcards, which the filter
	// procedure reads as "any value"
	filter := mapping.NewDescriptor[entity.FilterCriteria](GroupFilterFlight,
		mapping.String("FlightNumber", "FLIGHTNUMBER", func(c *entity.FilterCriteria) *string { return &c.FlightNumber }, mapping.NullIfZero()),
		mapping.String("TakeoffAirport", "TAKEOFFAIRPORT", func(c *entity.FilterCriteria) *string { return &c.TakeoffAirport }, mapping.NullIfZero()),
		mapping.String("LandingAirport", "LANDINGAIRPORT", func(c *entity.FilterCriteria) *string { return &c.LandingAirport }, mapping.NullIfZero()),
	)
	if err := mapping.Register(r, filter); err != nil {
		return nil, err
	}

	r.Seal()
	return r, nil
}
