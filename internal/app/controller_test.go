package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weatherbuddy/internal/geolocation"
	"github.com/i474232898/weatherbuddy/internal/history"
	"github.com/i474232898/weatherbuddy/internal/store"
	"github.com/i474232898/weatherbuddy/internal/theme"
	"github.com/i474232898/weatherbuddy/internal/weather"
)

// fakeProvider answers from canned data. Lookups for a city listed in gates
// block until that channel is closed; started receives the city first.
type fakeProvider struct {
	mu          sync.Mutex
	calls       int
	noKey       bool
	brokenName  bool
	canonical   map[string]string
	weatherErr  map[string]error
	forecastErr map[string]error
	gates       map[string]chan struct{}
	started     chan string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		canonical: map[string]string{
			"paris":          "Paris",
			"tokyo":          "Tokyo",
			"sao paulo":      "São Paulo",
			"48.8566,2.3522": "Paris",
		},
		weatherErr:  make(map[string]error),
		forecastErr: make(map[string]error),
		gates:       make(map[string]chan struct{}),
		started:     make(chan string, 16),
	}
}

func (p *fakeProvider) Name() string {
	p.mu.Lock()
	broken := p.brokenName
	p.mu.Unlock()
	if broken {
		panic("provider misconfigured")
	}
	return "fake"
}

func (p *fakeProvider) HasCredential() bool { return !p.noKey }

func (p *fakeProvider) key(q weather.Query) string {
	if q.Coords != nil {
		return "48.8566,2.3522"
	}
	return strings.ToLower(q.City)
}

func (p *fakeProvider) enter(q weather.Query) {
	k := p.key(q)
	p.mu.Lock()
	p.calls++
	gate := p.gates[k]
	p.mu.Unlock()

	if gate != nil {
		p.started <- k
		<-gate
	}
}

func (p *fakeProvider) Current(ctx context.Context, q weather.Query) (weather.Snapshot, error) {
	p.enter(q)
	k := p.key(q)
	if err := p.weatherErr[k]; err != nil {
		return weather.Snapshot{}, err
	}
	name, ok := p.canonical[k]
	if !ok {
		return weather.Snapshot{}, &weather.Error{Kind: weather.KindNotFound, Place: q.String(), Status: 404}
	}
	return weather.Snapshot{City: name, Country: "XX", Temperature: 21}, nil
}

func (p *fakeProvider) Forecast(ctx context.Context, q weather.Query) (weather.Forecast, error) {
	p.enter(q)
	k := p.key(q)
	if err := p.forecastErr[k]; err != nil {
		return nil, err
	}
	if _, ok := p.canonical[k]; !ok {
		return nil, &weather.Error{Kind: weather.KindNotFound, Place: q.String(), Status: 404}
	}
	return weather.Forecast{{Time: time.Unix(0, 0).UTC(), Temperature: 20}}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) gate(city string) chan struct{} {
	ch := make(chan struct{})
	p.mu.Lock()
	p.gates[strings.ToLower(city)] = ch
	p.mu.Unlock()
	return ch
}

func (p *fakeProvider) ungate(city string) {
	p.mu.Lock()
	delete(p.gates, strings.ToLower(city))
	p.mu.Unlock()
}

func newTestController(p *fakeProvider, locator geolocation.Locator) (*Controller, *store.MemoryStore) {
	prefs := store.NewMemoryStore()
	svc := weather.NewService(p, time.Second)
	return New(svc, prefs, geolocation.NewAdapter(locator, geolocation.DefaultOptions())), prefs
}

// waitStarted waits until both requests of a gated cycle have begun.
func waitStarted(t *testing.T, p *fakeProvider) {
	t.Helper()
	for i := 0; i < 2; i++ {
		select {
		case <-p.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("gated lookup never started")
		}
	}
}

func TestSearchSuccessRecordsCanonicalName(t *testing.T) {
	p := newFakeProvider()
	c, prefs := newTestController(p, nil)

	v := c.Search(context.Background(), "  sao paulo ")

	if v.Weather == nil || v.Forecast == nil {
		t.Fatalf("expected weather and forecast, got %+v", v)
	}
	if v.CurrentCity != "São Paulo" {
		t.Fatalf("expected canonical city, got %q", v.CurrentCity)
	}
	if v.Error != "" || v.Loading {
		t.Fatalf("unexpected error/loading: %q %v", v.Error, v.Loading)
	}
	if len(v.History) != 1 || v.History[0] != "São Paulo" {
		t.Fatalf("unexpected history %v", v.History)
	}
	if raw, _, _ := prefs.Get(history.StorageKey); raw != `["São Paulo"]` {
		t.Fatalf("history not written through: %q", raw)
	}
}

func TestPartialFailureReconciliation(t *testing.T) {
	tests := []struct {
		name         string
		city         string
		weatherErr   error
		forecastErr  error
		wantWeather  bool
		wantForecast bool
		wantError    string
	}{
		{
			name:         "forecast fails",
			city:         "Paris",
			forecastErr:  &weather.Error{Kind: weather.KindUnavailable, Status: 503},
			wantWeather:  true,
			wantForecast: false,
			wantError:    "Could not load forecast data.",
		},
		{
			name:         "weather fails",
			city:         "Paris",
			weatherErr:   &weather.Error{Kind: weather.KindNotFound, Status: 404},
			wantWeather:  false,
			wantForecast: true,
			wantError:    `City "Paris" not found.`,
		},
		{
			name:         "both fail, weather wins",
			city:         "Paris",
			weatherErr:   &weather.Error{Kind: weather.KindAuth, Status: 401},
			forecastErr:  &weather.Error{Kind: weather.KindAuth, Status: 401},
			wantWeather:  false,
			wantForecast: false,
			wantError:    "Invalid API Key.",
		},
		{
			name:         "network",
			city:         "Paris",
			weatherErr:   &weather.Error{Kind: weather.KindNetwork},
			wantWeather:  false,
			wantForecast: true,
			wantError:    "Network error fetching weather.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.weatherErr["paris"] = tt.weatherErr
			p.forecastErr["paris"] = tt.forecastErr
			c, _ := newTestController(p, nil)

			v := c.Search(context.Background(), tt.city)

			if (v.Weather != nil) != tt.wantWeather {
				t.Errorf("weather present = %v, want %v", v.Weather != nil, tt.wantWeather)
			}
			if (v.Forecast != nil) != tt.wantForecast {
				t.Errorf("forecast present = %v, want %v", v.Forecast != nil, tt.wantForecast)
			}
			if v.Error != tt.wantError {
				t.Errorf("error = %q, want %q", v.Error, tt.wantError)
			}
			if tt.weatherErr != nil && len(v.History) != 0 {
				t.Errorf("failed lookup must not touch history, got %v", v.History)
			}
		})
	}
}

func TestSearchDifferentCityClearsSnapshotsWhileLoading(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")

	release := p.gate("tokyo")
	done := make(chan View, 1)
	go func() { done <- c.Search(context.Background(), "Tokyo") }()
	waitStarted(t, p)

	mid := c.View()
	if mid.Weather != nil || mid.Forecast != nil {
		t.Fatalf("stale snapshots shown while loading a new city: %+v", mid)
	}
	if !mid.Loading || mid.CurrentCity != "Tokyo" {
		t.Fatalf("expected loading Tokyo, got loading=%v city=%q", mid.Loading, mid.CurrentCity)
	}

	close(release)
	v := <-done
	if v.Weather == nil || v.CurrentCity != "Tokyo" || v.Loading {
		t.Fatalf("unexpected final state %+v", v)
	}
}

func TestRefreshKeepsSnapshotsWhileLoading(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")

	release := p.gate("paris")
	done := make(chan View, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	waitStarted(t, p)

	mid := c.View()
	if mid.Weather == nil || mid.Forecast == nil {
		t.Fatalf("refresh of the same city should keep snapshots while loading")
	}
	if !mid.Loading {
		t.Fatalf("expected loading during refresh")
	}

	// A second refresh while one is running is ignored.
	before := p.callCount()
	c.Refresh(context.Background())
	if p.callCount() != before {
		t.Fatalf("overlapping refresh issued requests")
	}

	close(release)
	<-done
}

func TestRefreshWithoutCityDoesNothing(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	c.Refresh(context.Background())
	if p.callCount() != 0 {
		t.Fatalf("refresh without a city issued %d requests", p.callCount())
	}
}

func TestRefreshDoesNotRecordHistory(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")
	c.ClearHistory()

	v := c.Refresh(context.Background())
	if len(v.History) != 0 {
		t.Fatalf("refresh recorded history: %v", v.History)
	}
	if p.callCount() != 4 {
		t.Fatalf("expected two cycles (4 requests), got %d", p.callCount())
	}
}

func TestReplayCurrentCityIsNoop(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")
	before := p.callCount()

	c.ReplayHistory(context.Background(), "PARIS")

	if p.callCount() != before {
		t.Fatalf("replaying the displayed city issued requests")
	}
}

func TestReplayOtherCityFetchesWithoutRecording(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")

	v := c.ReplayHistory(context.Background(), "Tokyo")

	if v.CurrentCity != "Tokyo" || v.Weather == nil {
		t.Fatalf("replay did not load Tokyo: %+v", v)
	}
	if len(v.History) != 1 || v.History[0] != "Paris" {
		t.Fatalf("replay must not change history, got %v", v.History)
	}
}

func TestReplayRefetchesWhenSnapshotMissing(t *testing.T) {
	p := newFakeProvider()
	p.weatherErr["paris"] = &weather.Error{Kind: weather.KindUnavailable, Status: 502}
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")
	before := p.callCount()

	c.ReplayHistory(context.Background(), "paris")
	if p.callCount() == before {
		t.Fatalf("replay should fetch when no weather snapshot is shown")
	}
}

func TestPreconditionFailures(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	v := c.Search(context.Background(), "   ")
	if v.Error != "Please enter a city name." {
		t.Fatalf("unexpected validation message %q", v.Error)
	}

	p.noKey = true
	v = c.Search(context.Background(), "Paris")
	if v.Error != "API Key is not configured." {
		t.Fatalf("unexpected configuration message %q", v.Error)
	}
	if v.Loading {
		t.Fatalf("precondition failure must not start loading")
	}
	if p.callCount() != 0 {
		t.Fatalf("precondition failures issued %d requests", p.callCount())
	}
}

func TestGeolocationFailureResetsDisplay(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")

	v := c.Geolocate(context.Background(), geolocation.Reported{ErrorCode: geolocation.CodePermissionDenied})

	if v.Weather != nil || v.Forecast != nil || v.CurrentCity != "" {
		t.Fatalf("geolocation failure must clear the display: %+v", v)
	}
	if v.Error != geolocation.ReasonPermissionDenied.Message() {
		t.Fatalf("unexpected message %q", v.Error)
	}
	if v.ErrorSource != ErrorSourceGeolocation || v.GeolocationLoading {
		t.Fatalf("unexpected source/loading %q %v", v.ErrorSource, v.GeolocationLoading)
	}
	if len(v.History) != 1 {
		t.Fatalf("history must survive geolocation failure")
	}
}

func TestGeolocationSuccessFetchesByCoordinates(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, geolocation.Static{Latitude: 48.8566, Longitude: 2.3522})

	v := c.Geolocate(context.Background(), nil)

	if v.Weather == nil || v.CurrentCity != "Paris" {
		t.Fatalf("unexpected state %+v", v)
	}
	if len(v.History) != 0 {
		t.Fatalf("geolocation must not record history, got %v", v.History)
	}
	if v.Loading || v.GeolocationLoading {
		t.Fatalf("loading flags left set")
	}
}

func TestGeolocationForecastFailureMessage(t *testing.T) {
	p := newFakeProvider()
	p.forecastErr["48.8566,2.3522"] = &weather.Error{Kind: weather.KindUnavailable, Status: 500}
	c, _ := newTestController(p, geolocation.Static{Latitude: 48.8566, Longitude: 2.3522})

	v := c.Geolocate(context.Background(), nil)
	if v.Error != "Could not load forecast data for your location." {
		t.Fatalf("unexpected message %q", v.Error)
	}
}

func TestGeolocationUnsupported(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	v := c.Geolocate(context.Background(), nil)
	if v.Error != geolocationUnsupported {
		t.Fatalf("unexpected message %q", v.Error)
	}
}

func TestThemeTogglePersists(t *testing.T) {
	p := newFakeProvider()
	c, prefs := newTestController(p, nil)

	if c.View().Theme != theme.Light {
		t.Fatalf("expected light default")
	}
	if v := c.ToggleTheme(); v.Theme != theme.Dark {
		t.Fatalf("expected dark after toggle")
	}

	reloaded := New(weather.NewService(p, 0), prefs, nil)
	if reloaded.View().Theme != theme.Dark {
		t.Fatalf("theme not persisted across reload")
	}
}

func TestResetKeepsHistoryAndTheme(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Paris")
	c.ToggleTheme()

	v := c.Reset()
	if v.Weather != nil || v.Forecast != nil || v.CurrentCity != "" || v.Error != "" || v.Loading || v.GeolocationLoading {
		t.Fatalf("reset left transient state: %+v", v)
	}
	if len(v.History) != 1 || v.Theme != theme.Dark {
		t.Fatalf("reset touched persisted state: %+v", v)
	}
}

func TestResetDiscardsInFlightCycle(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	release := p.gate("tokyo")
	done := make(chan View, 1)
	go func() { done <- c.Search(context.Background(), "Tokyo") }()
	waitStarted(t, p)

	c.Reset()
	close(release)
	<-done

	v := c.View()
	if v.Weather != nil || v.CurrentCity != "" {
		t.Fatalf("in-flight result applied after reset: %+v", v)
	}
	if len(v.History) != 0 {
		t.Fatalf("discarded cycle recorded history: %v", v.History)
	}
}

func TestLatestSearchWins(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	release := p.gate("paris")
	slow := make(chan View, 1)
	go func() { slow <- c.Search(context.Background(), "Paris") }()
	waitStarted(t, p)
	p.ungate("paris")

	c.Search(context.Background(), "Tokyo")
	close(release)
	<-slow

	v := c.View()
	if v.CurrentCity != "Tokyo" || v.Weather == nil || v.Weather.City != "Tokyo" {
		t.Fatalf("older cycle overwrote newer result: %+v", v)
	}
	if v.Loading {
		t.Fatalf("loading left set")
	}
}

func TestDismissError(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	c.Search(context.Background(), "Atlantis")

	if c.View().Error == "" {
		t.Fatalf("expected not-found error")
	}
	if v := c.DismissError(); v.Error != "" || v.ErrorSource != ErrorSourceNone {
		t.Fatalf("error not dismissed: %+v", v)
	}
}

// gatedLocator blocks until released, then reports a fix in Paris.
type gatedLocator struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedLocator() *gatedLocator {
	return &gatedLocator{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedLocator) Locate(ctx context.Context, _ geolocation.Options) (geolocation.Position, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return geolocation.Position{Latitude: 48.8566, Longitude: 2.3522}, nil
	case <-ctx.Done():
		return geolocation.Position{}, ctx.Err()
	}
}

func TestSearchSupersedingGeolocationClearsItsFlag(t *testing.T) {
	p := newFakeProvider()
	loc := newGatedLocator()
	c, _ := newTestController(p, loc)

	done := make(chan View, 1)
	go func() { done <- c.Geolocate(context.Background(), nil) }()
	select {
	case <-loc.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("location lookup never started")
	}

	v := c.Search(context.Background(), "Tokyo")
	if v.GeolocationLoading || v.Loading {
		t.Fatalf("flags left set after search settled: loading=%v geolocationLoading=%v", v.Loading, v.GeolocationLoading)
	}

	close(loc.release)
	<-done

	v = c.View()
	if v.CurrentCity != "Tokyo" || v.Loading || v.GeolocationLoading {
		t.Fatalf("superseded location result changed state: %+v", v)
	}

	before := p.callCount()
	c.Refresh(context.Background())
	if p.callCount() == before {
		t.Fatalf("refresh blocked after a superseded geolocation")
	}
}

func TestGeolocationSupersedingSearchClearsLoading(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)

	release := p.gate("tokyo")
	done := make(chan View, 1)
	go func() { done <- c.Search(context.Background(), "Tokyo") }()
	waitStarted(t, p)

	v := c.Geolocate(context.Background(), geolocation.Reported{ErrorCode: geolocation.CodePermissionDenied})
	if v.Loading || v.GeolocationLoading {
		t.Fatalf("flags left set after geolocation failed: loading=%v geolocationLoading=%v", v.Loading, v.GeolocationLoading)
	}

	close(release)
	<-done

	v = c.View()
	if v.Loading || v.GeolocationLoading {
		t.Fatalf("flags left set after superseded search settled: %+v", v)
	}
	if v.Weather != nil || v.CurrentCity != "" {
		t.Fatalf("superseded search result applied: %+v", v)
	}
	if v.Error != geolocation.ReasonPermissionDenied.Message() || v.ErrorSource != ErrorSourceGeolocation {
		t.Fatalf("unexpected error %q (%s)", v.Error, v.ErrorSource)
	}
}

func TestUnexpectedCycleFailureClearsDisplay(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestController(p, nil)
	if v := c.Search(context.Background(), "Paris"); v.Weather == nil || v.Forecast == nil {
		t.Fatalf("first search should succeed: %+v", v)
	}

	p.mu.Lock()
	p.brokenName = true
	p.mu.Unlock()

	v := c.Refresh(context.Background())
	if v.Weather != nil || v.Forecast != nil {
		t.Fatalf("snapshots kept after unexpected failure: %+v", v)
	}
	if v.Error != "An unexpected error occurred during city fetch." || v.ErrorSource != ErrorSourceWeather {
		t.Fatalf("unexpected error %q (%s)", v.Error, v.ErrorSource)
	}
	if v.Loading {
		t.Fatalf("loading left set after unexpected failure")
	}
}
