package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Reason says why a location lookup failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonPermissionDenied
	ReasonPositionUnavailable
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission_denied"
	case ReasonPositionUnavailable:
		return "position_unavailable"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message is the text shown to the user for r.
func (r Reason) Message() string {
	switch r {
	case ReasonPermissionDenied:
		return "Please turn on your location services to use this feature."
	case ReasonPositionUnavailable:
		return "Unable to detect your location. Please try again."
	case ReasonTimeout:
		return "Location request timed out. Please try again."
	default:
		return "An error occurred while getting your location."
	}
}

// Error is a failed location lookup.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "geolocation: " + e.Reason.String()
	}
	return fmt.Sprintf("geolocation: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Locator failures that map onto a Reason.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Position is a located fix.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Options bound a lookup.
type Options struct {
	// Timeout caps how long a lookup may take.
	Timeout time.Duration
	// MaximumAge allows reusing a previous fix no older than this.
	MaximumAge time.Duration
	// HighAccuracy asks the locator for its most precise source.
	HighAccuracy bool
}

// DefaultOptions never block more than 10 seconds, accept a one-minute-old
// fix and do not ask for high accuracy.
func DefaultOptions() Options {
	return Options{
		Timeout:      10 * time.Second,
		MaximumAge:   60 * time.Second,
		HighAccuracy: false,
	}
}

// Locator is a source of positions.
type Locator interface {
	Locate(ctx context.Context, opts Options) (Position, error)
}

// Adapter turns a Locator into a bounded lookup with a normalized outcome:
// a Position, or an *Error carrying a Reason.
type Adapter struct {
	locator Locator
	opts    Options
	now     func() time.Time

	mu     sync.Mutex
	cached *Position
}

// NewAdapter creates an Adapter around locator.
func NewAdapter(locator Locator, opts Options) *Adapter {
	return &Adapter{
		locator: locator,
		opts:    opts,
		now:     time.Now,
	}
}

// Supported reports whether a location source is configured.
func (a *Adapter) Supported() bool {
	return a != nil && a.locator != nil
}

// Options returns the lookup options in use.
func (a *Adapter) Options() Options {
	return a.opts
}

// RequestLocation returns a fix, reusing the last one when it is recent enough.
func (a *Adapter) RequestLocation(ctx context.Context) (Position, error) {
	return a.request(ctx, a.locator, true)
}

// RequestFrom resolves through a one-off locator (for instance a position a
// client reported). The result is not cached.
func (a *Adapter) RequestFrom(ctx context.Context, locator Locator) (Position, error) {
	return a.request(ctx, locator, false)
}

func (a *Adapter) request(ctx context.Context, locator Locator, useCache bool) (Position, error) {
	if useCache {
		if pos, ok := a.fromCache(); ok {
			log.Printf("DEBUG: reusing cached location from %s", pos.Timestamp.Format(time.RFC3339))
			return pos, nil
		}
	}

	if locator == nil {
		return Position{}, &Error{Reason: ReasonPositionUnavailable, Err: errors.New("no locator configured")}
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	type result struct {
		pos Position
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := locator.Locate(ctx, a.opts)
		done <- result{pos: pos, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	if r.err != nil {
		return Position{}, classify(r.err)
	}

	if r.pos.Timestamp.IsZero() {
		r.pos.Timestamp = a.now()
	}
	if useCache {
		a.mu.Lock()
		p := r.pos
		a.cached = &p
		a.mu.Unlock()
	}
	return r.pos, nil
}

func (a *Adapter) fromCache() (Position, bool) {
	if a.opts.MaximumAge <= 0 {
		return Position{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached == nil || a.now().Sub(a.cached.Timestamp) > a.opts.MaximumAge {
		return Position{}, false
	}
	return *a.cached, true
}

func classify(err error) *Error {
	var ge *Error
	switch {
	case errors.As(err, &ge):
		return ge
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Reason: ReasonTimeout, Err: err}
	case errors.Is(err, ErrPermissionDenied):
		return &Error{Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, ErrPositionUnavailable):
		return &Error{Reason: ReasonPositionUnavailable, Err: err}
	default:
		return &Error{Reason: ReasonUnknown, Err: err}
	}
}
