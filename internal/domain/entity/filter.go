package entity

// WildcardSentinel is the literal value clients send for "any value".
const WildcardSentinel = "null"

// FilterCriteria narrows a flight listing. Each field is a wildcard when it
// is empty, absent or equal to WildcardSentinel. The same rules drive the
// store query and the client-side membership test, so both sides must go
// through Matches or Normalized.
type FilterCriteria struct {
	FlightNumber   string `json:"flightNumber"`
	TakeoffAirport string `json:"takeoffAirport"`
	LandingAirport string `json:"landingAirport"`
}

// EntityName identifies the criteria in the field descriptor registry
func (FilterCriteria) EntityName() string { return "FilterCriteria" }

// IsWildcard reports whether a single criteria value matches anything
func IsWildcard(value string) bool {
	return value == "" || value == WildcardSentinel
}

// Normalized returns a copy with every wildcard value cleared to "".
func (c FilterCriteria) Normalized() FilterCriteria {
	return FilterCriteria{
		FlightNumber:   normalizeCriteriaValue(c.FlightNumber),
		TakeoffAirport: normalizeCriteriaValue(c.TakeoffAirport),
		LandingAirport: normalizeCriteriaValue(c.LandingAirport),
	}
}

// IsEmpty reports whether every field is a wildcard
func (c FilterCriteria) IsEmpty() bool {
	return IsWildcard(c.FlightNumber) && IsWildcard(c.TakeoffAirport) && IsWildcard(c.LandingAirport)
}

// Matches reports whether the flight satisfies every non-wildcard field
func (c FilterCriteria) Matches(flight FlightRecord) bool {
	return criteriaValueMatches(c.FlightNumber, flight.FlightNumber) &&
		criteriaValueMatches(c.TakeoffAirport, flight.TakeoffAirport) &&
		criteriaValueMatches(c.LandingAirport, flight.LandingAirport)
}

func normalizeCriteriaValue(value string) string {
	if IsWildcard(value) {
		return ""
	}
	return value
}

func criteriaValueMatches(want, got string) bool {
	return IsWildcard(want) || want == got
}
