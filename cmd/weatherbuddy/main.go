package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kelvins/geocoder"

	httpapi "github.com/i474232898/weatherbuddy/internal/api/http"
	"github.com/i474232898/weatherbuddy/internal/app"
	"github.com/i474232898/weatherbuddy/internal/config"
	"github.com/i474232898/weatherbuddy/internal/geolocation"
	"github.com/i474232898/weatherbuddy/internal/scheduler"
	"github.com/i474232898/weatherbuddy/internal/store"
	"github.com/i474232898/weatherbuddy/internal/weather"
	"github.com/i474232898/weatherbuddy/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Provider with resilience (circuit breaker, optional backoff and rate limit).
	provider, err := providers.New(cfg.Provider, httpClient, cfg.APIKey, providers.Options{
		BaseURL: cfg.BaseURL,
		Units:   cfg.Units,
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	})
	if err != nil {
		log.Fatalf("failed to build weather provider: %v", err)
	}
	if cfg.RateLimit > 0 {
		provider = providers.NewRateLimitedProvider(provider, cfg.RateLimit, cfg.RateBurst)
	}
	log.Printf("INFO: using weather provider %s", provider.Name())

	service := weather.NewService(provider, cfg.FetchTimeout)

	// Preferences: SQLite when a path is configured, memory otherwise.
	var prefs store.Store
	if cfg.PrefsDBPath != "" {
		db, err := store.NewSQLite(cfg.PrefsDBPath)
		if err != nil {
			log.Fatalf("failed to open preferences database: %v", err)
		}
		defer db.Close()
		prefs = db
	} else {
		log.Println("INFO: PREFS_DB_PATH not set; theme and history are kept in memory")
		prefs = store.NewMemoryStore()
	}

	geo := geolocation.NewAdapter(newLocator(cfg), geolocation.Options{
		Timeout:    cfg.GeoTimeout,
		MaximumAge: cfg.GeoMaxAge,
	})

	ctrl := app.New(service, prefs, geo)

	// Optional background refresh of the displayed city.
	sched := scheduler.New(ctrl, cfg.AutoRefreshInterval, cfg.FetchTimeout)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	server := fiber.New(fiber.Config{
		AppName:               "weatherbuddy",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	// Basic health endpoint
	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weatherbuddy",
			"provider": provider.Name(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(server, ctrl)

	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			log.Printf("INFO: fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("ERROR: error during shutdown: %v", err)
	}
}

// newLocator picks the server-side location source: fixed coordinates, a
// geocoded address, or none (clients may still report their own position).
func newLocator(cfg *config.AppConfig) geolocation.Locator {
	switch {
	case cfg.GeoLatitude != nil && cfg.GeoLongitude != nil:
		return geolocation.Static{Latitude: *cfg.GeoLatitude, Longitude: *cfg.GeoLongitude}
	case cfg.GeoAddress != "":
		return &geolocation.Geocoded{
			APIKey:  cfg.GeocoderAPIKey,
			Address: geocoder.Address{Street: cfg.GeoAddress},
		}
	default:
		return nil
	}
}
