package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weatherbuddy/internal/weather"
	"github.com/sony/gobreaker"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// Options tunes a provider. Zero values fall back to the provider's
// public endpoint, metric units and no retries.
type Options struct {
	BaseURL string
	Units   string
	Backoff BackoffConfig
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap's
// current-conditions and 5 day / 3 hour forecast endpoints.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	units   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts Options) *OpenWeatherProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenWeatherBaseURL
	}
	units := opts.Units
	if units == "" {
		units = "metric"
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		units:   units,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// HasCredential reports whether an API key was configured.
func (p *OpenWeatherProvider) HasCredential() bool {
	return p.apiKey != ""
}

type owCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owCurrentPayload struct {
	Name  string `json:"name"`
	Dt    int64  `json:"dt"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []owCondition `json:"weather"`
}

type owForecastPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []owCondition `json:"weather"`
	} `json:"list"`
}

// Current fetches current conditions. The returned snapshot carries the
// provider's canonical spelling of the place name.
func (p *OpenWeatherProvider) Current(ctx context.Context, q weather.Query) (weather.Snapshot, error) {
	var payload owCurrentPayload
	if err := p.get(ctx, "weather", q, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return weather.Snapshot{
		City:        payload.Name,
		Country:     payload.Sys.Country,
		Coords:      weather.Coordinates{Lat: payload.Coord.Lat, Lon: payload.Coord.Lon},
		ObservedAt:  ts,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		Visibility:  payload.Visibility,
		WindSpeed:   payload.Wind.Speed,
		Condition:   firstCondition(payload.Weather),
	}, nil
}

// Forecast fetches the 3-hour forecast and keeps the first entries only.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, q weather.Query) (weather.Forecast, error) {
	var payload owForecastPayload
	if err := p.get(ctx, "forecast", q, &payload); err != nil {
		return nil, err
	}

	n := len(payload.List)
	if n > weather.MaxForecastPoints {
		n = weather.MaxForecastPoints
	}

	forecast := make(weather.Forecast, 0, n)
	for _, item := range payload.List[:n] {
		forecast = append(forecast, weather.ForecastPoint{
			Time:        time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
			Condition:   firstCondition(item.Weather),
		})
	}
	return forecast, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, q weather.Query, out interface{}) error {
	if p.apiKey == "" {
		return weather.ErrNoAPIKey
	}

	place := q.String()
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", p.units)

		if q.Coords != nil {
			values.Set("lat", strconv.FormatFloat(q.Coords.Lat, 'f', -1, 64))
			values.Set("lon", strconv.FormatFloat(q.Coords.Lon, 'f', -1, 64))
		} else {
			values.Set("q", q.City)
		}

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, place, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(place, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &weather.Error{Kind: weather.KindUnexpected, Place: place, Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}
	return nil
}

func firstCondition(items []owCondition) weather.Condition {
	if len(items) == 0 {
		return weather.Condition{}
	}
	return weather.Condition{
		Code:        items[0].ID,
		Main:        items[0].Main,
		Description: items[0].Description,
		Icon:        items[0].Icon,
	}
}
