package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nicoespa/MesaYa/internal/models"
)

// IncrementMetrics adds the deltas to the restaurant's counters for
// the given day. The upsert is a single atomic statement, so two
// concurrent increments for the same (restaurant, day) never lose an
// update.
func (db *DB) IncrementMetrics(ctx context.Context, restaurantID, day string, seated, noShows, covers int) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO metrics_daily (restaurant_id, day, seated, no_shows, covers)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(restaurant_id, day) DO UPDATE SET
            seated = seated + excluded.seated,
            no_shows = no_shows + excluded.no_shows,
            covers = covers + excluded.covers`,
		restaurantID, day, seated, noShows, covers)
	if err != nil {
		return fmt.Errorf("increment metrics: %w", err)
	}
	return nil
}

// GetMetricsDaily returns the counters for one day. A missing row
// reads as zeros.
func (db *DB) GetMetricsDaily(ctx context.Context, restaurantID, day string) (*models.MetricsDaily, error) {
	m := &models.MetricsDaily{RestaurantID: restaurantID, Day: day}
	err := db.QueryRowContext(ctx, `
        SELECT seated, no_shows, covers FROM metrics_daily
        WHERE restaurant_id = ? AND day = ?`,
		restaurantID, day).Scan(&m.Seated, &m.NoShows, &m.Covers)
	if err == sql.ErrNoRows {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	return m, nil
}

// ListMetricsRange returns the rows for days in [fromDay, toDay],
// newest first. Days without activity have no row.
func (db *DB) ListMetricsRange(ctx context.Context, restaurantID, fromDay, toDay string) ([]models.MetricsDaily, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT restaurant_id, day, seated, no_shows, covers
        FROM metrics_daily
        WHERE restaurant_id = ? AND day >= ? AND day <= ?
        ORDER BY day DESC`,
		restaurantID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("list metrics range: %w", err)
	}
	defer rows.Close()

	var out []models.MetricsDaily
	for rows.Next() {
		var m models.MetricsDaily
		if err := rows.Scan(&m.RestaurantID, &m.Day, &m.Seated, &m.NoShows, &m.Covers); err != nil {
			return nil, fmt.Errorf("scan metrics row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
