package route

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced while planning a route.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindNoRouteFound ErrorKind = "no_route_found"
	KindNoGeometry   ErrorKind = "no_geometry"
	KindTransport    ErrorKind = "transport"
	KindUnknown      ErrorKind = "unknown"
)

// Error is the domain error returned by adapters and the route session.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports bad input detected before any network call.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewNotFoundError reports a place that the geocoder could not resolve.
func NewNotFoundError(place string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("no location found for %q", place)}
}

// NewNoRouteFoundError reports an error payload from the safety ranker.
func NewNoRouteFoundError(message string) *Error {
	return &Error{Kind: KindNoRouteFound, Message: message}
}

// NewNoGeometryError reports a directions response without a usable path.
func NewNoGeometryError(message string) *Error {
	return &Error{Kind: KindNoGeometry, Message: message}
}

// NewTransportError wraps a network or protocol failure of a collaborator.
func NewTransportError(collaborator string, err error) *Error {
	return &Error{Kind: KindTransport, Message: collaborator + " request failed", Err: err}
}

// KindOf returns the kind of a domain error anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindUnknown
}

// UserMessage maps an error to the reason shown to the traveler. Internal
// fields of the error never leak into the message.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "Please enter both locations!"
	case KindNotFound:
		return "Location not found. Please check the place names and try again."
	case KindNoRouteFound:
		return "No safe route could be found between these places."
	case KindNoGeometry:
		return "Could not fetch route data."
	case KindTransport:
		return "A navigation service is unreachable right now. Please try again."
	default:
		return "Something went wrong while planning the route."
	}
}
