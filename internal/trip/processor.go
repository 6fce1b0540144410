package trip

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/shared/geo"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/shared/timestamp"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
)

// CheckSchema returns a validation error listing the required columns rs lacks.
func CheckSchema(rs tabular.RecordSet) error {
	if missing := rs.MissingColumns(RequiredColumns...); len(missing) > 0 {
		return missingColumns(missing, rs.Columns)
	}
	return nil
}

// ProcessRecords validates a single trip's rows and enriches them.
func ProcessRecords(rs tabular.RecordSet) ([]EnrichedPing, error) {
	if rs.Len() == 0 {
		return nil, validationf("trip data is empty")
	}
	if rs.Len() < 2 {
		return nil, validationf("trip must have at least 2 pings to calculate distances")
	}
	if err := CheckSchema(rs); err != nil {
		return nil, err
	}
	return Process(PingsFromRecords(rs))
}

// PingsFromRecords converts rows to pings without dropping any.
func PingsFromRecords(rs tabular.RecordSet) []Ping {
	pings := make([]Ping, 0, rs.Len())
	for _, row := range rs.Rows {
		pings = append(pings, Ping{
			Lat:       Coordinate(row[ColumnLatitude]),
			Lng:       Coordinate(row[ColumnLongitude]),
			Timestamp: row[ColumnTimestamp],
			TripID:    TripIDOf(row),
		})
	}
	return pings
}

// Process orders pings by their parsed timestamp and derives per-step
// distance, duration and speed. Pings whose timestamp cannot be parsed are
// dropped; a step that cannot be computed is reported as zero.
func Process(pings []Ping) ([]EnrichedPing, error) {
	if len(pings) == 0 {
		return nil, validationf("trip data is empty")
	}
	if len(pings) < 2 {
		return nil, validationf("trip must have at least 2 pings to calculate distances")
	}

	enriched := make([]EnrichedPing, 0, len(pings))
	for _, p := range pings {
		instant, ok := timestamp.Normalize(p.Timestamp)
		if !ok {
			continue
		}
		enriched = append(enriched, EnrichedPing{Ping: p, Instant: instant})
	}
	if len(enriched) < 2 {
		return nil, validationf("trip has insufficient valid data after filtering")
	}

	sort.SliceStable(enriched, func(i, j int) bool {
		return enriched[i].Instant.Before(enriched[j].Instant)
	})

	for i := 1; i < len(enriched); i++ {
		prev, curr := enriched[i-1], &enriched[i]
		step, err := geo.Leg(
			geo.Point{Lat: prev.Lat, Lng: prev.Lng},
			geo.Point{Lat: curr.Lat, Lng: curr.Lng},
			curr.Instant.Sub(prev.Instant),
		)
		if err != nil {
			log.Printf("error calculating metrics for row %d: %v", i, err)
			continue
		}
		curr.DistanceKm = step.DistanceKm
		curr.DurationHours = step.DurationHours
		curr.SpeedKmh = step.SpeedKmh
	}
	return enriched, nil
}

// Summarize totals an enriched trip. The average speed includes the leading
// zero of the first ping.
func Summarize(tripID string, pings []EnrichedPing) Summary {
	s := Summary{TripID: tripID, PingCount: len(pings)}
	if len(pings) == 0 {
		return s
	}
	var speeds float64
	for _, p := range pings {
		s.TotalDistance += p.DistanceKm
		s.TotalDuration += p.DurationHours
		speeds += p.SpeedKmh
	}
	s.AvgSpeed = speeds / float64(len(pings))
	return s
}

// GroupByTrip splits rs by trip id in order of first appearance. Without a
// trip_id column the whole set is one group named SingleTripID. Rows with a
// blank trip id are collected under the empty id.
func GroupByTrip(rs tabular.RecordSet) []Group {
	if !rs.HasColumn(ColumnTripID) {
		return []Group{{TripID: SingleTripID, Records: rs}}
	}

	index := map[string]int{}
	var groups []Group
	for _, row := range rs.Rows {
		id := TripIDOf(row)
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{TripID: id, Records: tabular.RecordSet{Columns: rs.Columns}})
		}
		groups[i].Records.Rows = append(groups[i].Records.Rows, row)
	}
	return groups
}

// BlankFields lists required columns that have no value in any row of rs.
func BlankFields(rs tabular.RecordSet) []string {
	var blank []string
	for _, col := range RequiredColumns {
		found := false
		for _, row := range rs.Rows {
			if v, ok := row[col]; ok && strings.TrimSpace(fmt.Sprint(v)) != "" {
				found = true
				break
			}
		}
		if !found {
			blank = append(blank, col)
		}
	}
	return blank
}

// TripIDOf returns the row's trip id, writing integral numbers without a
// fractional part so "7" and "7.0" name the same trip.
func TripIDOf(row tabular.Record) string {
	v, ok := row[ColumnTripID]
	if !ok || v == nil {
		return ""
	}
	return NormalizeTripID(fmt.Sprint(v))
}

func NormalizeTripID(id string) string {
	id = strings.TrimSpace(id)
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return id
}

// Coordinate parses a latitude or longitude cell, returning NaN when it is
// not numeric.
func Coordinate(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// FileSafeID maps a trip id onto characters that are safe in file names and
// Content-Disposition headers.
func FileSafeID(id string) string {
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, id)
}
