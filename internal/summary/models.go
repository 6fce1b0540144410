package summary

import "time"

// Entry is an archived trip summary from a finished batch.
type Entry struct {
	ID                 int64     `json:"id"`
	BatchID            string    `json:"batch_id"`
	TripID             string    `json:"trip_id"`
	PingCount          int       `json:"ping_count"`
	TotalDistanceKm    float64   `json:"total_distance_km"`
	TotalDurationHours float64   `json:"total_duration_hours"`
	AvgSpeedKmh        float64   `json:"avg_speed_kmh"`
	CreatedAt          time.Time `json:"created_at"`
}
