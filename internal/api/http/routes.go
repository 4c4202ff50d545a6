package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weatherbuddy/internal/app"
	"github.com/i474232898/weatherbuddy/internal/geolocation"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. Every action
// answers with the resulting view.
func RegisterRoutes(router fiber.Router, ctrl *app.Controller) {
	v1 := router.Group("/api/v1")

	v1.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.View())
	})

	v1.Post("/search", func(c *fiber.Ctx) error {
		var req cityRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		return c.JSON(ctrl.Search(c.UserContext(), *req.City))
	})

	v1.Post("/history/replay", func(c *fiber.Ctx) error {
		var req cityRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		return c.JSON(ctrl.ReplayHistory(c.UserContext(), *req.City))
	})

	v1.Delete("/history", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.ClearHistory())
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.Refresh(c.UserContext()))
	})

	v1.Post("/geolocate", func(c *fiber.Ctx) error {
		var req geolocateRequest
		if len(c.Body()) > 0 {
			if err := bindJSON(c, &req); err != nil {
				return err
			}
		}
		return c.JSON(ctrl.Geolocate(c.UserContext(), req.locator()))
	})

	v1.Post("/theme/toggle", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.ToggleTheme())
	})

	v1.Post("/reset", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.Reset())
	})

	v1.Delete("/error", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.DismissError())
	})
}

// cityRequest carries a city as typed or picked from history. Blank names
// pass validation here; the controller turns them into the user-facing
// validation message.
type cityRequest struct {
	City *string `json:"city" validate:"required"`
}

// geolocateRequest is an optional client-side location outcome: either a
// position or a W3C geolocation error code.
type geolocateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	ErrorCode int      `json:"errorCode" validate:"omitempty,excluded_with=Latitude,oneof=1 2 3"`
}

func (r geolocateRequest) locator() geolocation.Locator {
	switch {
	case r.ErrorCode != 0:
		return geolocation.Reported{ErrorCode: r.ErrorCode}
	case r.Latitude != nil && r.Longitude != nil:
		return geolocation.Reported{Position: &geolocation.Position{
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		}}
	default:
		return nil
	}
}

func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
