package providers

import (
	"context"
	"fmt"

	"github.com/i474232898/weatherbuddy/internal/weather"
	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a weather.Provider so current and forecast calls
// share one request budget.
type RateLimitedProvider struct {
	provider weather.Provider
	limiter  *rate.Limiter
	name     string
}

// NewRateLimitedProvider creates a rate limited provider.
// rps is the maximum requests per second (fractional for less than one per second),
// burst is the maximum burst size.
func NewRateLimitedProvider(provider weather.Provider, rps float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		name:     fmt.Sprintf("%s [Rate Limited]", provider.Name()),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.name
}

// HasCredential forwards to the wrapped provider when it needs a key.
func (r *RateLimitedProvider) HasCredential() bool {
	if c, ok := r.provider.(weather.Credentialed); ok {
		return c.HasCredential()
	}
	return true
}

func (r *RateLimitedProvider) Current(ctx context.Context, q weather.Query) (weather.Snapshot, error) {
	if err := r.wait(ctx, q); err != nil {
		return weather.Snapshot{}, err
	}
	return r.provider.Current(ctx, q)
}

func (r *RateLimitedProvider) Forecast(ctx context.Context, q weather.Query) (weather.Forecast, error) {
	if err := r.wait(ctx, q); err != nil {
		return nil, err
	}
	return r.provider.Forecast(ctx, q)
}

// wait blocks for a token. A canceled wait means the request never left.
func (r *RateLimitedProvider) wait(ctx context.Context, q weather.Query) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return &weather.Error{Kind: weather.KindNetwork, Place: q.String(), Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}
	return nil
}

var (
	_ weather.Provider     = (*RateLimitedProvider)(nil)
	_ weather.Credentialed = (*RateLimitedProvider)(nil)
	_ weather.Provider     = (*OpenWeatherProvider)(nil)
	_ weather.Credentialed = (*OpenWeatherProvider)(nil)
)
