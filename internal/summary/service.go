// Package summary archives the statistics of every rendered batch trip in
// Postgres.
package summary

import (
	"context"
	"errors"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/db"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"
)

var ErrUnavailable = errors.New("summary archive is not configured")

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Service struct {
	db db.Querier
}

// NewService accepts a nil querier; every call then fails with ErrUnavailable.
func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Enabled() bool { return s.db != nil }

func (s *Service) Record(ctx context.Context, batchID string, t trip.Summary) error {
	if s.db == nil {
		return ErrUnavailable
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_summaries (batch_id, trip_id, ping_count, total_distance_km, total_duration_hours, avg_speed_kmh)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, batchID, t.TripID, t.PingCount, t.TotalDistance, t.TotalDuration, t.AvgSpeed)
	return err
}

// Recent lists the newest entries first, optionally limited to one batch.
func (s *Service) Recent(ctx context.Context, batchID string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, batch_id, trip_id, ping_count, total_distance_km, total_duration_hours, avg_speed_kmh, created_at
		FROM trip_summaries
		WHERE ($1 = '' OR batch_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, batchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.TripID, &e.PingCount, &e.TotalDistanceKm, &e.TotalDurationHours, &e.AvgSpeedKmh, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
