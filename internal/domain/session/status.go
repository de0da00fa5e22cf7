package session

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a navigation session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPlanning   Status = "planning"
	StatusRouteReady Status = "route_ready"
	StatusNarrating  Status = "narrating"
	StatusArrived    Status = "arrived"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned when a command does not apply to the
// current status.
var ErrInvalidTransition = errors.New("invalid session transition")

// validTransitions is the navigation state machine. A new plan may start
// from any state.
var validTransitions = map[Status][]Status{
	StatusIdle:       {StatusPlanning},
	StatusPlanning:   {StatusPlanning, StatusRouteReady, StatusFailed},
	StatusRouteReady: {StatusPlanning, StatusNarrating, StatusArrived},
	StatusNarrating:  {StatusPlanning, StatusArrived, StatusRouteReady},
	StatusArrived:    {StatusPlanning},
	StatusFailed:     {StatusPlanning},
}

// IsValid returns true if the status is a recognized session status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Transition returns target if the move is allowed, otherwise a wrapped
// ErrInvalidTransition.
func (s Status) Transition(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
	}
	return target, nil
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid session status: %s", s)
	}
	return status, nil
}
