package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/i474232898/weatherbuddy/internal/geolocation"
	"github.com/i474232898/weatherbuddy/internal/history"
	"github.com/i474232898/weatherbuddy/internal/store"
	"github.com/i474232898/weatherbuddy/internal/theme"
	"github.com/i474232898/weatherbuddy/internal/weather"
)

const geolocationUnsupported = "Geolocation is not supported."

// Fetcher runs weather fetch cycles. *weather.Service implements it.
type Fetcher interface {
	Precheck() error
	FetchByCity(ctx context.Context, city string) weather.Cycle
	FetchByCoordinates(ctx context.Context, lat, lon float64) weather.Cycle
}

// Geolocator resolves the user's position. *geolocation.Adapter implements it.
type Geolocator interface {
	Supported() bool
	RequestLocation(ctx context.Context) (geolocation.Position, error)
	RequestFrom(ctx context.Context, locator geolocation.Locator) (geolocation.Position, error)
}

// Controller owns everything the UI shows and is the only thing that changes
// it. Actions may arrive concurrently; the mutex is never held across a
// network call.
//
// Every fetch cycle, geolocation request and reset takes a new generation
// number. A cycle that settles after a newer one started is discarded, so
// the last action the user took is the one whose result is shown.
type Controller struct {
	fetcher Fetcher
	geo     Geolocator
	prefs   store.Store
	history *history.Manager

	mu         sync.Mutex
	st         state
	generation uint64
}

// New builds a Controller, loading theme and history from prefs.
// geo may be nil when no location source exists at all.
func New(fetcher Fetcher, prefs store.Store, geo Geolocator) *Controller {
	c := &Controller{
		fetcher: fetcher,
		geo:     geo,
		prefs:   prefs,
		history: history.Load(prefs),
	}
	c.st.theme = theme.Load(prefs)
	return c
}

// View returns a copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Weather:            c.st.weather,
		Loading:            c.st.loading,
		GeolocationLoading: c.st.geolocationLoading,
		Error:              c.st.errMsg,
		ErrorSource:        c.st.errSource,
		CurrentCity:        c.st.currentCity,
		Theme:              c.st.theme,
		History:            c.history.List(),
	}
	if c.st.forecast != nil {
		v.Forecast = make(weather.Forecast, len(c.st.forecast))
		copy(v.Forecast, c.st.forecast)
	}
	return v
}

// Search looks up a city typed by the user and records it in the history
// when the lookup succeeds.
func (c *Controller) Search(ctx context.Context, city string) View {
	c.mu.Lock()
	gen, name, ok := c.beginCityLocked(city)
	c.mu.Unlock()
	if !ok {
		return c.View()
	}
	return c.finishCity(ctx, gen, name, true)
}

// ReplayHistory looks up a past search without touching the history.
// Re-selecting the city already on screen is a no-op.
func (c *Controller) ReplayHistory(ctx context.Context, city string) View {
	c.mu.Lock()
	if weather.SameCity(city, c.st.currentCity) && c.st.weather != nil {
		v := c.viewLocked()
		c.mu.Unlock()
		log.Printf("DEBUG: history replay of %q skipped; already displayed", city)
		return v
	}
	gen, name, ok := c.beginCityLocked(city)
	c.mu.Unlock()
	if !ok {
		return c.View()
	}
	return c.finishCity(ctx, gen, name, false)
}

// Refresh re-fetches the displayed city. It does nothing when no city is
// displayed or a lookup is already running.
func (c *Controller) Refresh(ctx context.Context) View {
	c.mu.Lock()
	if c.st.currentCity == "" || c.st.loading || c.st.geolocationLoading {
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}
	gen, name, ok := c.beginCityLocked(c.st.currentCity)
	c.mu.Unlock()
	if !ok {
		return c.View()
	}
	return c.finishCity(ctx, gen, name, false)
}

// AutoRefresh is Refresh for background callers that have no use for the view.
func (c *Controller) AutoRefresh(ctx context.Context) {
	v := c.Refresh(ctx)
	if v.Error != "" {
		log.Printf("INFO: auto-refresh of %q: %s", v.CurrentCity, v.Error)
	}
}

// Geolocate resolves the user's position and fetches weather for it.
// reported, when non-nil, is a position (or failure) the client already
// obtained; otherwise the configured location source is asked.
func (c *Controller) Geolocate(ctx context.Context, reported geolocation.Locator) View {
	c.mu.Lock()
	if c.geo == nil || (reported == nil && !c.geo.Supported()) {
		c.st.setError(ErrorSourceGeolocation, geolocationUnsupported)
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}
	c.generation++
	gen := c.generation
	c.st.geolocationLoading = true
	// Any city lookup still running is now superseded and will be discarded.
	c.st.loading = false
	c.st.clearError()
	c.mu.Unlock()

	var (
		pos geolocation.Position
		err error
	)
	if reported != nil {
		pos, err = c.geo.RequestFrom(ctx, reported)
	} else {
		pos, err = c.geo.RequestLocation(ctx)
	}

	c.mu.Lock()
	if gen != c.generation {
		v := c.viewLocked()
		c.mu.Unlock()
		log.Printf("DEBUG: discarding superseded location result (generation %d)", gen)
		return v
	}
	c.st.geolocationLoading = false

	if err != nil {
		log.Printf("INFO: geolocation failed: %v", err)
		c.st.clearWeather()
		c.st.currentCity = ""
		c.st.setError(ErrorSourceGeolocation, geolocationMessage(err))
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}

	gen, ok := c.beginCoordinatesLocked()
	c.mu.Unlock()
	if !ok {
		return c.View()
	}
	return c.finishCoordinates(ctx, gen, pos.Latitude, pos.Longitude)
}

// ToggleTheme flips between light and dark and persists the choice.
func (c *Controller) ToggleTheme() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st.theme = c.st.theme.Toggle()
	if err := theme.Save(c.prefs, c.st.theme); err != nil {
		log.Printf("ERROR: %v", err)
	}
	return c.viewLocked()
}

// Reset clears everything on screen. History and theme are kept; any
// lookup still in flight is ignored when it settles.
func (c *Controller) Reset() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.st.clearWeather()
	c.st.clearError()
	c.st.currentCity = ""
	c.st.loading = false
	c.st.geolocationLoading = false
	return c.viewLocked()
}

// ClearHistory forgets all past searches.
func (c *Controller) ClearHistory() View {
	if err := c.history.Clear(); err != nil {
		log.Printf("ERROR: %v", err)
	}
	return c.View()
}

// DismissError hides the current error message.
func (c *Controller) DismissError() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st.clearError()
	return c.viewLocked()
}

// beginCityLocked validates the request and moves the state into loading.
// Snapshots of a different city are dropped right away so they are never
// shown under the new name; refreshing the same city keeps them.
func (c *Controller) beginCityLocked(city string) (uint64, string, bool) {
	name, err := weather.NormalizeCity(city)
	if err != nil {
		c.st.setError(ErrorSourceWeather, weather.Message(err, weather.CityQuery(city)))
		return 0, "", false
	}
	if err := c.fetcher.Precheck(); err != nil {
		c.st.setError(ErrorSourceWeather, weather.Message(err, weather.CityQuery(name)))
		return 0, "", false
	}

	c.generation++
	c.st.loading = true
	c.st.geolocationLoading = false
	c.st.clearError()
	if !weather.SameCity(name, c.st.currentCity) {
		c.st.clearWeather()
	}
	c.st.currentCity = name
	return c.generation, name, true
}

func (c *Controller) beginCoordinatesLocked() (uint64, bool) {
	if err := c.fetcher.Precheck(); err != nil {
		c.st.setError(ErrorSourceWeather, weather.Message(err, weather.CoordsQuery(0, 0)))
		return 0, false
	}

	c.generation++
	c.st.loading = true
	c.st.geolocationLoading = false
	c.st.clearError()
	c.st.clearWeather()
	return c.generation, true
}

func (c *Controller) finishCity(ctx context.Context, gen uint64, name string, record bool) View {
	cycle := c.fetcher.FetchByCity(ctx, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settleLocked(gen, cycle) {
		return c.viewLocked()
	}
	if record && cycle.Weather != nil {
		if _, err := c.history.Record(cycle.CanonicalCity()); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
	return c.viewLocked()
}

func (c *Controller) finishCoordinates(ctx context.Context, gen uint64, lat, lon float64) View {
	cycle := c.fetcher.FetchByCoordinates(ctx, lat, lon)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.settleLocked(gen, cycle)
	return c.viewLocked()
}

// settleLocked applies a finished cycle if it is still the latest one.
func (c *Controller) settleLocked(gen uint64, cycle weather.Cycle) bool {
	if gen != c.generation {
		log.Printf("DEBUG: discarding superseded fetch cycle %s for %s", cycle.ID, cycle.Query)
		return false
	}
	c.st.loading = false

	if cycle.Unexpected != nil {
		c.st.clearWeather()
		c.st.setError(ErrorSourceWeather, cycle.ErrorMessage())
		return true
	}

	if cycle.Weather != nil {
		c.st.weather = cycle.Weather
		c.st.currentCity = cycle.CanonicalCity()
	} else {
		c.st.weather = nil
	}

	if cycle.ForecastErr == nil {
		c.st.forecast = cycle.Forecast
	} else {
		c.st.forecast = nil
	}

	c.st.setError(ErrorSourceWeather, cycle.ErrorMessage())
	return true
}

func geolocationMessage(err error) string {
	var ge *geolocation.Error
	if errors.As(err, &ge) {
		return ge.Reason.Message()
	}
	return geolocation.ReasonUnknown.Message()
}
