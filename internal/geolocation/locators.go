package geolocation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

// Static always answers with a configured position.
type Static struct {
	Latitude  float64
	Longitude float64
}

func (s Static) Locate(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	return Position{Latitude: s.Latitude, Longitude: s.Longitude}, nil
}

// W3C GeolocationPositionError codes, as a browser reports them.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Reported replays the outcome a browser client already got from its own
// location service: either a position or an error code.
type Reported struct {
	Position  *Position
	ErrorCode int
}

func (r Reported) Locate(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if r.Position != nil && r.ErrorCode == 0 {
		return *r.Position, nil
	}

	switch r.ErrorCode {
	case CodePermissionDenied:
		return Position{}, &Error{Reason: ReasonPermissionDenied}
	case CodePositionUnavailable:
		return Position{}, &Error{Reason: ReasonPositionUnavailable}
	case CodeTimeout:
		return Position{}, &Error{Reason: ReasonTimeout}
	default:
		return Position{}, &Error{Reason: ReasonUnknown, Err: fmt.Errorf("reported error code %d", r.ErrorCode)}
	}
}

// Geocoded resolves a configured street address through the Google
// geocoding API. The address is looked up once; later calls reuse the result.
type Geocoded struct {
	APIKey  string
	Address geocoder.Address

	mu       sync.Mutex
	resolved *Position
}

// geocoder keeps its key in a package variable.
var geocoderMu sync.Mutex

func (g *Geocoded) Locate(ctx context.Context, _ Options) (Position, error) {
	if g.APIKey == "" {
		return Position{}, fmt.Errorf("geocoder api key is not configured: %w", ErrPermissionDenied)
	}

	g.mu.Lock()
	if g.resolved != nil {
		p := *g.resolved
		g.mu.Unlock()
		return p, nil
	}
	g.mu.Unlock()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		geocoderMu.Lock()
		defer geocoderMu.Unlock()

		geocoder.ApiKey = g.APIKey
		loc, err := geocoder.Geocoding(g.Address)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return Position{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Position{}, fmt.Errorf("geocode %q: %v: %w", addressLabel(g.Address), r.err, ErrPositionUnavailable)
		}
		if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
			return Position{}, fmt.Errorf("geocode %q: empty result: %w", addressLabel(g.Address), ErrPositionUnavailable)
		}

		p := Position{Latitude: r.loc.Latitude, Longitude: r.loc.Longitude}
		g.mu.Lock()
		g.resolved = &p
		g.mu.Unlock()
		return p, nil
	}
}

func addressLabel(a geocoder.Address) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

var (
	_ Locator = Static{}
	_ Locator = Reported{}
	_ Locator = (*Geocoded)(nil)
)
