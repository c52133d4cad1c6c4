package session

import (
	"tripmind/pkg/errors"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry. Messages are immutable once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Handler string `json:"handler,omitempty"`
}

// StateKey is a typed session state key. Only keys declared below are
// accepted by the store.
type StateKey string

const (
	KeyOrigin       StateKey = "origin"
	KeyDestination  StateKey = "destination"
	KeyStartDate    StateKey = "start_date"
	KeyEndDate      StateKey = "end_date"
	KeyBudget       StateKey = "budget"
	KeyNumTravelers StateKey = "num_travelers"
	KeyPreferences  StateKey = "preferences"
	KeyLastHandler  StateKey = "last_handler"
	KeyLastResponse StateKey = "last_response"
	KeyTravelPlan   StateKey = "travel_plan"

	KeyAccommodationResponse  StateKey = "accommodation_response"
	KeyActivityResponse       StateKey = "activity_response"
	KeyRestaurantResponse     StateKey = "restaurant_response"
	KeyTransportationResponse StateKey = "transportation_response"
	KeyTripPlannerResponse    StateKey = "trip_planner_response"
	KeyGeneralResponse        StateKey = "general_response"
)

var knownKeys = map[StateKey]struct{}{
	KeyOrigin:                 {},
	KeyDestination:            {},
	KeyStartDate:              {},
	KeyEndDate:                {},
	KeyBudget:                 {},
	KeyNumTravelers:           {},
	KeyPreferences:            {},
	KeyLastHandler:            {},
	KeyLastResponse:           {},
	KeyTravelPlan:             {},
	KeyAccommodationResponse:  {},
	KeyActivityResponse:       {},
	KeyRestaurantResponse:     {},
	KeyTransportationResponse: {},
	KeyTripPlannerResponse:    {},
	KeyGeneralResponse:        {},
}

// Valid reports whether k is a declared key
func (k StateKey) Valid() bool {
	_, ok := knownKeys[k]
	return ok
}

// ParseStateKey converts a raw string into a StateKey
func ParseStateKey(raw string) (StateKey, error) {
	k := StateKey(raw)
	if !k.Valid() {
		return "", errors.Wrapf(errors.ErrUnknownStateKey, "%q", raw)
	}
	return k, nil
}

// ResponseKey returns the state key that stores a handler's last answer
func ResponseKey(handler string) (StateKey, error) {
	return ParseStateKey(handler + "_response")
}
