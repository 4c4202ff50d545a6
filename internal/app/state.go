package app

import (
	"github.com/i474232898/weatherbuddy/internal/theme"
	"github.com/i474232898/weatherbuddy/internal/weather"
)

// ErrorSource says which subsystem set the error message.
type ErrorSource string

const (
	ErrorSourceNone        ErrorSource = ""
	ErrorSourceWeather     ErrorSource = "weather"
	ErrorSourceGeolocation ErrorSource = "geolocation"
)

// View is the read-only state handed to the presentation layer.
// Weather and Forecast are nil when absent.
type View struct {
	Weather            *weather.Snapshot `json:"weather"`
	Forecast           weather.Forecast  `json:"forecast"`
	Loading            bool              `json:"loading"`
	GeolocationLoading bool              `json:"geolocationLoading"`
	Error              string            `json:"error,omitempty"`
	ErrorSource        ErrorSource       `json:"errorSource,omitempty"`
	CurrentCity        string            `json:"currentCity"`
	Theme              theme.Theme       `json:"theme"`
	History            []string          `json:"history"`
}

// state is the controller's private copy. There is a single error slot, so
// at most one message is ever visible.
type state struct {
	weather            *weather.Snapshot
	forecast           weather.Forecast
	loading            bool
	geolocationLoading bool
	errMsg             string
	errSource          ErrorSource
	currentCity        string
	theme              theme.Theme
}

func (s *state) setError(src ErrorSource, msg string) {
	if msg == "" {
		s.clearError()
		return
	}
	s.errMsg = msg
	s.errSource = src
}

func (s *state) clearError() {
	s.errMsg = ""
	s.errSource = ErrorSourceNone
}

func (s *state) clearWeather() {
	s.weather = nil
	s.forecast = nil
}
