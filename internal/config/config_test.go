package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openweathermap" || cfg.Units != "metric" || cfg.Port != "8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxRetries != 0 {
		t.Fatalf("retries must default to 0, got %d", cfg.MaxRetries)
	}
	if cfg.GeoTimeout != 10*time.Second || cfg.GeoMaxAge != time.Minute {
		t.Fatalf("unexpected geolocation defaults: %v %v", cfg.GeoTimeout, cfg.GeoMaxAge)
	}
	if cfg.AutoRefreshInterval != 0 || cfg.GeoLatitude != nil {
		t.Fatalf("optional features should be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEATHER_PROVIDER", "WeatherAPI")
	t.Setenv("WEATHERAPI_API_KEY", "wa")
	t.Setenv("WEATHER_UNITS", "imperial")
	t.Setenv("GEO_LATITUDE", "48.85")
	t.Setenv("GEO_LONGITUDE", "2.35")
	t.Setenv("AUTO_REFRESH_INTERVAL", "10m")
	t.Setenv("PROVIDER_RATE_LIMIT", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "weatherapi" || cfg.APIKey != "wa" || cfg.Units != "imperial" {
		t.Fatalf("unexpected provider settings: %+v", cfg)
	}
	if cfg.GeoLatitude == nil || *cfg.GeoLatitude != 48.85 || *cfg.GeoLongitude != 2.35 {
		t.Fatalf("coordinates not parsed")
	}
	if cfg.AutoRefreshInterval != 10*time.Minute || cfg.RateLimit != 0.5 {
		t.Fatalf("unexpected interval/rate: %v %v", cfg.AutoRefreshInterval, cfg.RateLimit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "units", key: "WEATHER_UNITS", val: "kelvin-ish"},
		{name: "timeout", key: "HTTP_TIMEOUT", val: "soon"},
		{name: "latitude", key: "GEO_LATITUDE", val: "north"},
		{name: "rate", key: "PROVIDER_RATE_LIMIT", val: "fast"},
		{name: "negative retries", key: "PROVIDER_MAX_RETRIES", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadRequiresBothCoordinates(t *testing.T) {
	t.Setenv("GEO_LATITUDE", "10")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when only latitude is set")
	}
}

func TestBaseURLFollowsProvider(t *testing.T) {
	t.Setenv("OPENWEATHER_BASE_URL", "http://owm.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://owm.local" {
		t.Fatalf("openweathermap base url not applied: %q", cfg.BaseURL)
	}

	t.Setenv("WEATHER_PROVIDER", "weatherapi")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "" {
		t.Fatalf("openweathermap base url leaked into weatherapi: %q", cfg.BaseURL)
	}

	t.Setenv("WEATHERAPI_BASE_URL", "http://wa.local")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://wa.local" {
		t.Fatalf("weatherapi base url not applied: %q", cfg.BaseURL)
	}
}
