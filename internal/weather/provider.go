package weather

import (
	"context"
)

// Provider abstracts the weather data source (e.g. OpenWeatherMap).
// Failures should be *Error values so the orchestrator can classify them.
type Provider interface {
	Name() string
	Current(ctx context.Context, q Query) (Snapshot, error)
	Forecast(ctx context.Context, q Query) (Forecast, error)
}

// Credentialed is implemented by providers that need an API key.
type Credentialed interface {
	HasCredential() bool
}
