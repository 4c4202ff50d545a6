package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Provider selects the weather backend: openweathermap or weatherapi.
	Provider string
	APIKey   string
	// BaseURL overrides the selected provider's endpoint
	// (OPENWEATHER_BASE_URL or WEATHERAPI_BASE_URL).
	BaseURL  string
	Units    string

	HTTPTimeout time.Duration
	// FetchTimeout bounds one fetch cycle (both requests). 0 = no bound.
	FetchTimeout time.Duration

	MaxRetries int
	RateLimit  float64 // requests per second, 0 = unlimited
	RateBurst  int

	// PrefsDBPath is the SQLite file for theme and history. Empty keeps them in memory.
	PrefsDBPath string

	// Location source. Coordinates win over an address.
	GeoLatitude    *float64
	GeoLongitude   *float64
	GeoAddress     string
	GeocoderAPIKey string
	GeoTimeout     time.Duration
	GeoMaxAge      time.Duration

	// AutoRefreshInterval re-fetches the displayed city. 0 disables it.
	AutoRefreshInterval time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Provider = strings.ToLower(getenvDefault("WEATHER_PROVIDER", "openweathermap"))
	cfg.APIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.BaseURL = os.Getenv("OPENWEATHER_BASE_URL")
	if cfg.Provider == "weatherapi" {
		cfg.APIKey = getenvDefault("WEATHERAPI_API_KEY", cfg.APIKey)
		cfg.BaseURL = os.Getenv("WEATHERAPI_BASE_URL")
	}

	cfg.Units = strings.ToLower(getenvDefault("WEATHER_UNITS", "metric"))
	switch cfg.Units {
	case "metric", "imperial", "standard":
	default:
		return nil, fmt.Errorf("invalid WEATHER_UNITS %q", cfg.Units)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.MaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 0)
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_RETRIES %d: must not be negative", cfg.MaxRetries)
	}
	if cfg.RateLimit, err = getenvFloat("PROVIDER_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	cfg.RateBurst = getenvInt("PROVIDER_RATE_BURST", 2)

	cfg.PrefsDBPath = os.Getenv("PREFS_DB_PATH")

	if cfg.GeoLatitude, err = getenvOptionalFloat("GEO_LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.GeoLongitude, err = getenvOptionalFloat("GEO_LONGITUDE"); err != nil {
		return nil, err
	}
	if (cfg.GeoLatitude == nil) != (cfg.GeoLongitude == nil) {
		return nil, fmt.Errorf("GEO_LATITUDE and GEO_LONGITUDE must be set together")
	}
	cfg.GeoAddress = os.Getenv("GEO_ADDRESS")
	cfg.GeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	if cfg.GeoTimeout, err = getenvDuration("GEO_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeoMaxAge, err = getenvDuration("GEO_MAX_AGE", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.AutoRefreshInterval, err = getenvDuration("AUTO_REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvOptionalFloat(key string) (*float64, error) {
	if os.Getenv(key) == "" {
		return nil, nil
	}
	f, err := getenvFloat(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
