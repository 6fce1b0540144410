package report

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store *Store) {
	r.Get("/download-pdf/:filename", func(c *fiber.Ctx) error {
		name := c.Params("filename")
		path, err := store.Path(name)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "PDF file not found")
		}
		return c.Download(path, name)
	})
}
