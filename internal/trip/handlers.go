package trip

import (
	"errors"
	"fmt"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/upload", func(c *fiber.Ctx) error {
		rs, err := tabular.FromUpload(c, false)
		if err != nil {
			return err
		}
		preview, err := svc.Preview(rs)
		if err != nil {
			return WriteError(c, err, "Error processing file")
		}
		return c.JSON(preview)
	})

	r.Post("/generate-report", func(c *fiber.Ctx) error {
		rs, err := tabular.FromUpload(c, true)
		if err != nil {
			return err
		}
		tripID := c.FormValue("trip_id", SingleTripID)
		doc, err := svc.Report(rs, tripID)
		if err != nil {
			return WriteError(c, err, "Error generating report")
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="trip_report_%s.pdf"`, FileSafeID(tripID)))
		return c.Send(doc)
	})
}

// WriteError answers validation failures with 400 and anything else with 500
// prefixed by action.
func WriteError(c *fiber.Ctx, err error, action string) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return fiber.NewError(fiber.StatusInternalServerError, action+": "+err.Error())
	}
	if len(ve.Missing) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	found := ve.Found
	if found == nil {
		found = []string{}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":            err.Error(),
		"required_columns": RequiredColumns,
		"found_columns":    found,
	})
}
