// Package report renders trip documents and keeps the generated files.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"

	"github.com/go-pdf/fpdf"
)

var (
	ErrEmptyTrip = errors.New("trip data is empty")
	ErrNonFinite = errors.New("trip data has a non-finite value")
)

const (
	timeLayout = "2006-01-02 15:04:05"
	margin     = 30.0
	inch       = 72.0
)

var (
	tableHeader = []string{"Updated At", "Latitude", "Longitude", "Distance (Km)", "Duration (Minutes)", "Avg Speed (Km/hr)"}
	tableWidths = []float64{1.4 * inch, 1.1 * inch, 1.1 * inch, 1.2 * inch, 1.2 * inch, 1 * inch}
)

// Renderer lays out a trip as a letter-size PDF: a key/value header block
// followed by one table row per ping.
type Renderer struct {
	vehicle string
	logo    string
}

func NewRenderer(vehicle, logoPath string) *Renderer {
	return &Renderer{vehicle: vehicle, logo: logoPath}
}

func (r *Renderer) Render(tripID string, pings []trip.EnrichedPing, generatedAt time.Time) ([]byte, error) {
	if len(pings) == 0 {
		return nil, ErrEmptyTrip
	}
	for i, p := range pings {
		if !finite(p.Lat, p.Lng, p.DistanceKm, p.DurationHours, p.SpeedKmh) {
			return nil, fmt.Errorf("%w at row %d", ErrNonFinite, i+1)
		}
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	r.drawLogo(pdf)
	r.drawHeader(pdf, tripID, pings, generatedAt)
	drawTable(pdf, pings)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLogo places the configured image in the top left corner. A missing or
// unreadable logo leaves the document without one.
func (r *Renderer) drawLogo(pdf *fpdf.Fpdf) {
	if r.logo == "" {
		return
	}
	if _, err := os.Stat(r.logo); err != nil {
		return
	}
	opts := fpdf.ImageOptions{ImageType: imageType(r.logo), ReadDpi: true}
	pdf.RegisterImageOptions(r.logo, opts)
	if !pdf.Ok() {
		log.Printf("skipping report logo %s: %v", r.logo, pdf.Error())
		pdf.ClearError()
		return
	}
	pdf.ImageOptions(r.logo, margin, margin, 2*inch, 0.8*inch, false, opts, 0, "")
	pdf.SetY(margin + 0.8*inch + 20)
}

func (r *Renderer) drawHeader(pdf *fpdf.Fpdf, tripID string, pings []trip.EnrichedPing, generatedAt time.Time) {
	s := trip.Summarize(tripID, pings)
	rows := [][2]string{
		{"Report Generation Timestamp", generatedAt.Format(timeLayout)},
		{"", ""},
		{"Vehicle No:", r.vehicle},
		{"Trip ID:", tripID},
		{"Date of Journey:", pings[0].Instant.Format(timeLayout)},
		{"", ""},
		{"Average Speed:", fmt.Sprintf("%.2f KM/Hr", s.AvgSpeed)},
		{"Distance Covered:", fmt.Sprintf("%.2f KM", s.TotalDistance)},
		{"Running Time:", fmt.Sprintf("%.2f Hrs", s.TotalDuration)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(2.5*inch, 14, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(3*inch, 14, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(20)
}

func drawTable(pdf *fpdf.Fpdf, pings []trip.EnrichedPing) {
	const headerHeight, rowHeight = 26.0, 20.0
	_, pageHeight := pdf.GetPageSize()
	limit := pageHeight - margin

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		for i, title := range tableHeader {
			pdf.CellFormat(tableWidths[i], headerHeight, title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	header()
	for _, p := range pings {
		if pdf.GetY()+rowHeight > limit {
			pdf.AddPage()
			header()
		}
		cells := []string{
			p.Instant.Format(timeLayout),
			fmt.Sprintf("%.5f", p.Lat),
			fmt.Sprintf("%.5f", p.Lng),
			fmt.Sprintf("%.2f", p.DistanceKm),
			strconv.Itoa(int(p.DurationHours * 60)),
			fmt.Sprintf("%.0f", p.SpeedKmh),
		}
		for i, cell := range cells {
			pdf.CellFormat(tableWidths[i], rowHeight, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "JPG"
	case ".gif":
		return "GIF"
	default:
		return "PNG"
	}
}
