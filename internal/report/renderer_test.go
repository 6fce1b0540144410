package report

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"
)

func samplePings(n int) []trip.EnrichedPing {
	start := time.Date(2025, 2, 4, 16, 0, 0, 0, time.UTC)
	pings := make([]trip.EnrichedPing, n)
	for i := range pings {
		pings[i] = trip.EnrichedPing{
			Ping:    trip.Ping{Lat: 12.97 + float64(i)*0.001, Lng: 77.59, TripID: "7"},
			Instant: start.Add(time.Duration(i) * time.Minute),
		}
		if i > 0 {
			pings[i].DistanceKm = 0.11
			pings[i].DurationHours = 1.0 / 60
			pings[i].SpeedKmh = 6.6
		}
	}
	return pings
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer("TN93C4414", "")
	doc, err := r.Render("7", samplePings(3), time.Now())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %q", doc[:8])
	}
	if !bytes.Contains(doc[len(doc)-16:], []byte("%%EOF")) {
		t.Fatalf("expected pdf trailer")
	}
}

func TestRenderManyRowsSpansPages(t *testing.T) {
	r := NewRenderer("TN93C4414", "")
	short, err := r.Render("7", samplePings(5), time.Now())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	long, err := r.Render("7", samplePings(200), time.Now())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(long) <= len(short) {
		t.Fatalf("expected longer document for more rows")
	}
}

func TestRenderMissingLogoIgnored(t *testing.T) {
	r := NewRenderer("TN93C4414", "/nonexistent/logo.png")
	if _, err := r.Render("7", samplePings(2), time.Now()); err != nil {
		t.Fatalf("missing logo must not fail render: %v", err)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	r := NewRenderer("TN93C4414", "")
	if _, err := r.Render("7", nil, time.Now()); !errors.Is(err, ErrEmptyTrip) {
		t.Fatalf("expected ErrEmptyTrip, got %v", err)
	}
	pings := samplePings(3)
	pings[1].Lat = math.NaN()
	if _, err := r.Render("7", pings, time.Now()); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	pings = samplePings(3)
	pings[2].SpeedKmh = math.Inf(1)
	if _, err := r.Render("7", pings, time.Now()); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}
