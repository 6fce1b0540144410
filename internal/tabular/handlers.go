package tabular

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// FromUpload reads the multipart "file" field of c. When withSheet is set the
// optional "worksheet_name" field picks the workbook sheet.
func FromUpload(c *fiber.Ctx, withSheet bool) (RecordSet, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return RecordSet{}, fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}
	if fh.Filename == "" {
		return RecordSet{}, fiber.NewError(fiber.StatusBadRequest, "No file selected")
	}
	if !IsSupported(fh.Filename) {
		return RecordSet{}, fiber.NewError(fiber.StatusBadRequest, ErrUnsupportedFormat.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return RecordSet{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err))
	}
	defer f.Close()

	sheet := ""
	if withSheet {
		sheet = c.FormValue("worksheet_name")
	}
	rs, err := Read(fh.Filename, f, sheet)
	if err != nil {
		return RecordSet{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err))
	}
	return rs, nil
}

func RegisterRoutes(r fiber.Router) {
	r.Post("/list-worksheets", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "No file provided")
		}
		if fh.Filename == "" || !IsExcel(fh.Filename) {
			return fiber.NewError(fiber.StatusBadRequest, "Please select a valid Excel (.xlsx) file")
		}

		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("Error reading Excel file: %v", err))
		}
		defer f.Close()

		sheets, err := Sheets(f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("Error reading Excel file: %v", err))
		}
		return c.JSON(fiber.Map{
			"worksheets": sheets,
			"message":    fmt.Sprintf("Found %d worksheets", len(sheets)),
		})
	})
}
