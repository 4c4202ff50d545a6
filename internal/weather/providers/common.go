package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/i474232898/weatherbuddy/internal/weather"
	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries defaults to 0: a failed lookup is surfaced, not retried.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errServerError   = errors.New("server error")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// serverStatusError carries a 5xx status through the circuit breaker.
type serverStatusError struct {
	code int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("%v: %d", errServerError, e.code)
}

func (e *serverStatusError) Unwrap() error {
	return errServerError
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes the HTTP request behind a circuit breaker, with optional
// retries and exponential backoff.
//
// Only transport failures and 5xx answers count against the breaker; any other
// response is handed back to the caller to classify. The returned error is
// always a *weather.Error.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	place string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &weather.Error{Kind: weather.KindUnexpected, Place: place, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, &weather.Error{Kind: weather.KindConfiguration, Place: place, Err: errInvalidConfig}
	}

	var attempt int

	for {
		if err := ctx.Err(); err != nil {
			return nil, &weather.Error{Kind: weather.KindNetwork, Place: place, Err: err}
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, &weather.Error{Kind: weather.KindUnexpected, Place: place, Err: err}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, &serverStatusError{code: resp.StatusCode}
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, &weather.Error{Kind: weather.KindUnexpected, Place: place,
					Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			return resp, nil
		}

		// An open breaker means the provider has been failing; don't hammer it.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.Error{Kind: weather.KindUnavailable, Place: place, Err: err}
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, classifyFailure(place, err)
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &weather.Error{Kind: weather.KindNetwork, Place: place, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

func classifyFailure(place string, err error) error {
	var se *serverStatusError
	if errors.As(err, &se) {
		return &weather.Error{Kind: weather.KindUnavailable, Place: place, Status: se.code, Err: err}
	}
	return &weather.Error{Kind: weather.KindNetwork, Place: place, Err: err}
}

// statusError maps a non-2xx, non-5xx provider answer.
func statusError(place string, code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return &weather.Error{Kind: weather.KindAuth, Place: place, Status: code}
	case code == http.StatusNotFound:
		return &weather.Error{Kind: weather.KindNotFound, Place: place, Status: code}
	case code >= 500:
		return &weather.Error{Kind: weather.KindUnavailable, Place: place, Status: code}
	default:
		return &weather.Error{Kind: weather.KindStatus, Place: place, Status: code}
	}
}
