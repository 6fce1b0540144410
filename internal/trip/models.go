package trip

import (
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
)

const (
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
	ColumnTimestamp = "device_timestamp"
	ColumnTripID    = "trip_id"

	// SingleTripID names the implicit trip of a file without a trip_id column.
	SingleTripID = "single_trip"
)

var RequiredColumns = []string{ColumnLatitude, ColumnLongitude, ColumnTimestamp}

// Ping is one raw GPS observation. Lat and Lng are NaN when the source cell
// was not a number.
type Ping struct {
	Lat       float64 `json:"latitude"`
	Lng       float64 `json:"longitude"`
	Timestamp any     `json:"device_timestamp"`
	TripID    string  `json:"trip_id,omitempty"`
}

type EnrichedPing struct {
	Ping
	Instant       time.Time `json:"instant"`
	DistanceKm    float64   `json:"distance_km"`
	DurationHours float64   `json:"duration_hours"`
	SpeedKmh      float64   `json:"speed_kmh"`
}

type Summary struct {
	TripID        string  `json:"trip_id"`
	PingCount     int     `json:"ping_count"`
	TotalDistance float64 `json:"total_distance"`
	TotalDuration float64 `json:"total_duration"`
	AvgSpeed      float64 `json:"avg_speed"`
}

// Group is the slice of a record set that shares one trip id.
type Group struct {
	TripID  string
	Records tabular.RecordSet
}

type Preview struct {
	Message   string    `json:"message"`
	TripCount int       `json:"trip_count"`
	Reports   []Summary `json:"reports"`
}
