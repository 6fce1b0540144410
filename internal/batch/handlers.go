package batch

import (
	"errors"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, coord *Coordinator) {
	r.Post("/generate-batch-reports", func(c *fiber.Ctx) error {
		rs, err := tabular.FromUpload(c, true)
		if err != nil {
			return err
		}
		id, err := coord.Start(rs)
		if errors.Is(err, ErrShuttingDown) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return trip.WriteError(c, err, "Error starting batch generation")
		}
		return c.JSON(fiber.Map{
			"message":  "Batch PDF generation started",
			"batch_id": id,
		})
	})

	r.Get("/batch-status/:id", func(c *fiber.Ctx) error {
		status, err := coord.Status(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Batch job not found")
		}
		return c.JSON(status)
	})
}
