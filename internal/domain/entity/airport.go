package entity

// Airport represents an airport a flight can take off from or land at
type Airport struct {
	AirportCode string `json:"airportCode"`
	AirportName string `json:"airportName"`
}

// EntityName identifies the airport in the field descriptor registry
func (Airport) EntityName() string { return "Airport" }
