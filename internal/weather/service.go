package weather

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service runs fetch cycles: one current-weather request and one forecast
// request for the same place, issued together and reconciled into a Cycle.
type Service struct {
	provider Provider
	timeout  time.Duration
}

// NewService creates a new Service. A zero timeout leaves the deadline to the
// caller's context.
func NewService(provider Provider, timeout time.Duration) *Service {
	return &Service{
		provider: provider,
		timeout:  timeout,
	}
}

// Cycle is the settled outcome of one fetch cycle.
type Cycle struct {
	ID    string
	Query Query

	Weather     *Snapshot
	Forecast    Forecast
	WeatherErr  error
	ForecastErr error

	// Unexpected is set when the cycle itself failed outside both requests.
	// Weather and Forecast are then always empty.
	Unexpected error
}

// CanonicalCity is the place name as the provider spelled it, or "" when the
// weather request failed.
func (c Cycle) CanonicalCity() string {
	if c.Weather == nil {
		return ""
	}
	return c.Weather.City
}

// Failed reports whether anything in the cycle went wrong.
func (c Cycle) Failed() bool {
	return c.Unexpected != nil || c.WeatherErr != nil || c.ForecastErr != nil
}

// ErrorMessage is the single message surfaced for this cycle. Weather failures
// win over forecast failures; "" means both halves succeeded.
func (c Cycle) ErrorMessage() string {
	switch {
	case c.Unexpected != nil:
		return UnexpectedMessage(c.Query)
	case c.WeatherErr != nil:
		return Message(c.WeatherErr, c.Query)
	case c.ForecastErr != nil:
		return ForecastMessage(c.Query)
	default:
		return ""
	}
}

// NormalizeCity trims the user's input and rejects blank names.
func NormalizeCity(city string) (string, error) {
	name := strings.TrimSpace(city)
	if name == "" {
		return "", ErrEmptyCity
	}
	return name, nil
}

// Precheck fails when no request could succeed because the provider has no
// credential. It never touches the network.
func (s *Service) Precheck() error {
	if s.provider == nil {
		return ErrNoAPIKey
	}
	if c, ok := s.provider.(Credentialed); ok && !c.HasCredential() {
		return ErrNoAPIKey
	}
	return nil
}

// FetchByCity runs a fetch cycle for a free-text place name.
func (s *Service) FetchByCity(ctx context.Context, city string) Cycle {
	name, err := NormalizeCity(city)
	if err != nil {
		return Cycle{Query: CityQuery(city), WeatherErr: err}
	}
	q := CityQuery(name)
	if err := s.Precheck(); err != nil {
		return Cycle{Query: q, WeatherErr: err}
	}
	return s.run(ctx, q)
}

// FetchByCoordinates runs a fetch cycle for a position.
func (s *Service) FetchByCoordinates(ctx context.Context, lat, lon float64) Cycle {
	q := CoordsQuery(lat, lon)
	if err := s.Precheck(); err != nil {
		return Cycle{Query: q, WeatherErr: err}
	}
	return s.run(ctx, q)
}

// run issues both requests concurrently and waits for both to settle.
// Neither failure cancels the other request.
func (s *Service) run(ctx context.Context, q Query) (c Cycle) {
	c = Cycle{ID: uuid.NewString(), Query: q}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: fetch cycle %s for %s failed: %v", c.ID, q, r)
			c.Weather = nil
			c.Forecast = nil
			c.Unexpected = fmt.Errorf("fetch cycle: %v", r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Printf("DEBUG: fetch cycle %s started for %s via %s", c.ID, q, s.provider.Name())

	var (
		wg       sync.WaitGroup
		snapshot Snapshot
		forecast Forecast
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverInto(&c.WeatherErr)

		snapshot, c.WeatherErr = s.provider.Current(ctx, q)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&c.ForecastErr)

		forecast, c.ForecastErr = s.provider.Forecast(ctx, q)
	}()
	wg.Wait()

	if c.WeatherErr != nil {
		log.Printf("ERROR: provider %s weather failed for %s: %v", s.provider.Name(), q, c.WeatherErr)
	} else {
		c.Weather = &snapshot
	}

	if c.ForecastErr != nil {
		log.Printf("ERROR: provider %s forecast failed for %s: %v", s.provider.Name(), q, c.ForecastErr)
	} else {
		if len(forecast) > MaxForecastPoints {
			forecast = forecast[:MaxForecastPoints]
		}
		c.Forecast = forecast
	}

	log.Printf("DEBUG: fetch cycle %s settled for %s (weather ok=%t, forecast ok=%t)",
		c.ID, q, c.WeatherErr == nil, c.ForecastErr == nil)
	return c
}

// recoverInto turns a panic inside one request into that request's error.
func recoverInto(dst *error) {
	if r := recover(); r != nil {
		*dst = &Error{Kind: KindUnexpected, Err: fmt.Errorf("panic: %v", r)}
	}
}
