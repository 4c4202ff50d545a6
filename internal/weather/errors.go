package weather

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed lookup so it can be turned into a message.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindConfiguration
	KindValidation
	KindNotFound
	KindAuth
	KindUnavailable
	KindNetwork
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "provider_unavailable"
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	default:
		return "unexpected"
	}
}

var (
	// ErrNoAPIKey is returned before any request when no credential is configured.
	ErrNoAPIKey = &Error{Kind: KindConfiguration, Err: errors.New("weather api key is not configured")}

	// ErrEmptyCity is returned for a blank search.
	ErrEmptyCity = &Error{Kind: KindValidation, Err: errors.New("city name is empty")}
)

// Error is a provider or precondition failure.
type Error struct {
	Kind ErrorKind
	// Place is the query label the failure refers to (city or coordinates).
	Place string
	// Status is the HTTP status when the provider answered.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Place != "" {
		msg = fmt.Sprintf("%s for %q", msg, e.Place)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrNoAPIKey) holds for
// any configuration error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or KindUnexpected.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnexpected
}

// Message turns a current-weather failure into the text shown to the user.
func Message(err error, q Query) string {
	var we *Error
	if !errors.As(err, &we) {
		return "Unexpected weather fetch error."
	}

	switch we.Kind {
	case KindConfiguration:
		return "API Key is not configured."
	case KindValidation:
		return "Please enter a city name."
	}

	if q.ByCoordinates() {
		return "Could not fetch weather data for your location."
	}

	switch we.Kind {
	case KindNotFound:
		return fmt.Sprintf("City %q not found.", q.City)
	case KindAuth:
		return "Invalid API Key."
	case KindUnavailable:
		return "Weather service unavailable."
	case KindNetwork:
		return "Network error fetching weather."
	case KindStatus:
		return fmt.Sprintf("Weather Error: %d.", we.Status)
	default:
		return "Unexpected weather fetch error."
	}
}

// ForecastMessage is shown when only the forecast half of a cycle failed.
func ForecastMessage(q Query) string {
	if q.ByCoordinates() {
		return "Could not load forecast data for your location."
	}
	return "Could not load forecast data."
}

// UnexpectedMessage is shown when a cycle failed outside both requests.
func UnexpectedMessage(q Query) string {
	if q.ByCoordinates() {
		return "An unexpected error occurred fetching weather by location."
	}
	return "An unexpected error occurred during city fetch."
}
