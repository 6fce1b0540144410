package summary

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/summaries", func(c *fiber.Ctx) error {
		entries, err := svc.Recent(c.Context(), c.Query("batch_id"), c.QueryInt("limit", defaultLimit))
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"summaries": entries})
	})
}
