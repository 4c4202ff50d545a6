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

const (
	defaultWeatherAPIBaseURL = "https://api.weatherapi.com/v1"

	// WeatherAPI answers 400 with this code when q matches nothing.
	weatherAPINoLocation = 1006
	forecastStep         = 3 * time.Hour
)

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
// Its forecast is hourly, so points are picked three hours apart to line up
// with OpenWeatherMap's 3-hour steps.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	units   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts Options) *WeatherAPIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultWeatherAPIBaseURL
	}
	units := opts.Units
	if units == "" {
		units = "metric"
	}

	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		units:   units,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff,
		},
		circuit: newCircuitBreaker("weatherapi"),
		now:     time.Now,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) HasCredential() bool {
	return p.apiKey != ""
}

type waCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

type waHour struct {
	TimeEpoch int64       `json:"time_epoch"`
	TempC     float64     `json:"temp_c"`
	TempF     float64     `json:"temp_f"`
	Humidity  float64     `json:"humidity"`
	WindKph   float64     `json:"wind_kph"`
	WindMph   float64     `json:"wind_mph"`
	Condition waCondition `json:"condition"`
}

type waPayload struct {
	Location struct {
		Name    string  `json:"name"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	} `json:"location"`
	Current struct {
		LastUpdatedEpoch int64       `json:"last_updated_epoch"`
		TempC            float64     `json:"temp_c"`
		TempF            float64     `json:"temp_f"`
		FeelsLikeC       float64     `json:"feelslike_c"`
		FeelsLikeF       float64     `json:"feelslike_f"`
		Humidity         float64     `json:"humidity"`
		PressureMb       float64     `json:"pressure_mb"`
		VisKm            float64     `json:"vis_km"`
		WindKph          float64     `json:"wind_kph"`
		WindMph          float64     `json:"wind_mph"`
		Condition        waCondition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Hour []waHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type waErrorPayload struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPIProvider) Current(ctx context.Context, q weather.Query) (weather.Snapshot, error) {
	var payload waPayload
	if err := p.get(ctx, "current.json", q, nil, &payload); err != nil {
		return weather.Snapshot{}, err
	}

	cur := payload.Current
	ts := time.Now().UTC()
	if cur.LastUpdatedEpoch > 0 {
		ts = time.Unix(cur.LastUpdatedEpoch, 0).UTC()
	}

	snap := weather.Snapshot{
		City:       payload.Location.Name,
		Country:    payload.Location.Country,
		Coords:     weather.Coordinates{Lat: payload.Location.Lat, Lon: payload.Location.Lon},
		ObservedAt: ts,
		Humidity:   cur.Humidity,
		Pressure:   cur.PressureMb,
		Visibility: int(cur.VisKm * 1000),
		Condition:  waToCondition(cur.Condition),
	}
	if p.units == "imperial" {
		snap.Temperature, snap.FeelsLike, snap.WindSpeed = cur.TempF, cur.FeelsLikeF, cur.WindMph
	} else {
		snap.Temperature, snap.FeelsLike, snap.WindSpeed = cur.TempC, cur.FeelsLikeC, cur.WindKph/3.6
	}
	return snap, nil
}

func (p *WeatherAPIProvider) Forecast(ctx context.Context, q weather.Query) (weather.Forecast, error) {
	var payload waPayload
	extra := url.Values{}
	extra.Set("days", "2")
	if err := p.get(ctx, "forecast.json", q, extra, &payload); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	forecast := make(weather.Forecast, 0, weather.MaxForecastPoints)
	var last time.Time

	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			if len(forecast) >= weather.MaxForecastPoints {
				return forecast, nil
			}
			ts := time.Unix(h.TimeEpoch, 0).UTC()
			if !ts.After(now) {
				continue
			}
			if !last.IsZero() && ts.Sub(last) < forecastStep {
				continue
			}
			last = ts

			pt := weather.ForecastPoint{
				Time:      ts,
				Humidity:  h.Humidity,
				Condition: waToCondition(h.Condition),
			}
			if p.units == "imperial" {
				pt.Temperature, pt.WindSpeed = h.TempF, h.WindMph
			} else {
				pt.Temperature, pt.WindSpeed = h.TempC, h.WindKph/3.6
			}
			forecast = append(forecast, pt)
		}
	}
	return forecast, nil
}

func (p *WeatherAPIProvider) get(ctx context.Context, endpoint string, q weather.Query, extra url.Values, out interface{}) error {
	if p.apiKey == "" {
		return weather.ErrNoAPIKey
	}

	place := q.String()
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		for k, v := range extra {
			values[k] = v
		}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for both a place name and "lat,lon".
		if q.Coords != nil {
			values.Set("q", strconv.FormatFloat(q.Coords.Lat, 'f', -1, 64)+","+strconv.FormatFloat(q.Coords.Lon, 'f', -1, 64))
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

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var e waErrorPayload
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error.Code == weatherAPINoLocation {
			return &weather.Error{Kind: weather.KindNotFound, Place: place, Status: resp.StatusCode}
		}
		return statusError(place, resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		// Disabled or over-quota keys answer 403.
		return &weather.Error{Kind: weather.KindAuth, Place: place, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return statusError(place, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &weather.Error{Kind: weather.KindUnexpected, Place: place, Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}
	return nil
}

func waToCondition(c waCondition) weather.Condition {
	return weather.Condition{
		Code:        c.Code,
		Main:        c.Text,
		Description: c.Text,
		Icon:        c.Icon,
	}
}
