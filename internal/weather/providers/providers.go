package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/weatherbuddy/internal/weather"
)

// Provider names accepted by New.
const (
	OpenWeatherMap = "openweathermap"
	WeatherAPI     = "weatherapi"
)

// New builds the named provider. An empty name selects OpenWeatherMap.
func New(name string, client *http.Client, apiKey string, opts Options) (weather.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OpenWeatherMap:
		return NewOpenWeatherProvider(client, apiKey, opts), nil
	case WeatherAPI:
		return NewWeatherAPIProvider(client, apiKey, opts), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", name)
	}
}
