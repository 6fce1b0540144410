package db

import (
	"context"
	"errors"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned when no Postgres URL is configured.
var ErrNoDatabase = errors.New("postgres url not configured")

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.PostgresURL == "" {
		return nil, ErrNoDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate creates the tables used by the summary archive.
func Migrate(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trip_summaries (
			id BIGSERIAL PRIMARY KEY,
			batch_id TEXT NOT NULL,
			trip_id TEXT NOT NULL,
			ping_count INTEGER NOT NULL,
			total_distance_km DOUBLE PRECISION NOT NULL,
			total_duration_hours DOUBLE PRECISION NOT NULL,
			avg_speed_kmh DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}
