package weather

import (
	"fmt"
	"strings"
	"time"
)

// MaxForecastPoints caps how many forecast entries a Forecast keeps.
const MaxForecastPoints = 5

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Query identifies the place a fetch cycle asks for.
// Exactly one of City or Coords is set.
type Query struct {
	City   string       `json:"city,omitempty"`
	Coords *Coordinates `json:"coords,omitempty"`
}

// CityQuery builds a Query for a free-text place name.
func CityQuery(city string) Query {
	return Query{City: city}
}

// CoordsQuery builds a Query for a latitude/longitude pair.
func CoordsQuery(lat, lon float64) Query {
	return Query{Coords: &Coordinates{Lat: lat, Lon: lon}}
}

// ByCoordinates reports whether the query was made from a position.
func (q Query) ByCoordinates() bool {
	return q.Coords != nil
}

// String returns a short label used in logs.
func (q Query) String() string {
	if q.Coords != nil {
		return fmt.Sprintf("%.4f,%.4f", q.Coords.Lat, q.Coords.Lon)
	}
	return q.City
}

// Snapshot is the current-conditions view of one place.
// A Snapshot is never mutated after it is built; a new fetch replaces it.
type Snapshot struct {
	City        string      `json:"city"`
	Country     string      `json:"country"`
	Coords      Coordinates `json:"coords"`
	ObservedAt  time.Time   `json:"observedAt"` // always UTC
	Temperature float64     `json:"temperature"`
	FeelsLike   float64     `json:"feelsLike"`
	Humidity    float64     `json:"humidityPercent"`
	Pressure    float64     `json:"pressureHpa"`
	Visibility  int         `json:"visibilityMeters"`
	WindSpeed   float64     `json:"windSpeed"` // m/s with metric units
	Condition   Condition   `json:"condition"`
}

// Condition describes the sky as the provider reports it.
type Condition struct {
	Code        int    `json:"code"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ForecastPoint is a single future data point.
type ForecastPoint struct {
	Time        time.Time `json:"time"` // always UTC
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidityPercent"`
	WindSpeed   float64   `json:"windSpeed"`
	Condition   Condition `json:"condition"`
}

// Forecast is an ordered, time-ascending sequence of at most MaxForecastPoints entries.
type Forecast []ForecastPoint

// SameCity compares two place names the way the UI does: case-insensitively,
// ignoring surrounding whitespace.
func SameCity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
