package trip

import (
	"fmt"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
)

// Renderer turns an enriched trip into a finished document.
type Renderer interface {
	Render(tripID string, pings []EnrichedPing, generatedAt time.Time) ([]byte, error)
}

type Service struct {
	renderer Renderer
	now      func() time.Time
}

func NewService(renderer Renderer) *Service {
	return &Service{renderer: renderer, now: time.Now}
}

// Preview computes per-trip statistics for an uploaded file. Trips with a
// single ping are left out.
func (s *Service) Preview(rs tabular.RecordSet) (Preview, error) {
	if err := CheckSchema(rs); err != nil {
		return Preview{}, err
	}

	if !rs.HasColumn(ColumnTripID) {
		enriched, err := ProcessRecords(rs)
		if err != nil {
			return Preview{}, err
		}
		return Preview{
			Message:   "File processed successfully",
			TripCount: 1,
			Reports:   []Summary{Summarize(SingleTripID, enriched)},
		}, nil
	}

	reports := []Summary{}
	for _, g := range GroupByTrip(rs) {
		if g.TripID == "" || g.Records.Len() < 2 {
			continue
		}
		enriched, err := ProcessRecords(g.Records)
		if err != nil {
			return Preview{}, fmt.Errorf("trip %s: %w", g.TripID, err)
		}
		reports = append(reports, Summarize(g.TripID, enriched))
	}
	return Preview{
		Message:   "File processed successfully",
		TripCount: len(reports),
		Reports:   reports,
	}, nil
}

// Report renders the document for one trip of rs. tripID selects rows when
// the file carries a trip_id column; SingleTripID or "" uses every row.
func (s *Service) Report(rs tabular.RecordSet, tripID string) ([]byte, error) {
	if tripID == "" {
		tripID = SingleTripID
	}
	if tripID != SingleTripID && rs.HasColumn(ColumnTripID) {
		want := NormalizeTripID(tripID)
		rs = rs.Filter(func(r tabular.Record) bool { return TripIDOf(r) == want })
	}
	if rs.Len() < 2 {
		return nil, validationf("not enough data points for trip analysis")
	}

	enriched, err := ProcessRecords(rs)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(tripID, enriched, s.now())
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return doc, nil
}
