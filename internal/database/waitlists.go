package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nicoespa/MesaYa/internal/models"
)

// GetOpenWaitlist returns the restaurant's single open waitlist, or
// ErrNotFound when none is open.
func (db *DB) GetOpenWaitlist(ctx context.Context, restaurantID string) (*models.Waitlist, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, restaurant_id, status, created_at
        FROM waitlists
        WHERE restaurant_id = ? AND status = ?
        ORDER BY created_at DESC
        LIMIT 1`,
		restaurantID, models.WaitlistOpen)

	var w models.Waitlist
	err := row.Scan(&w.ID, &w.RestaurantID, &w.Status, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get open waitlist: %w", err)
	}
	return &w, nil
}

// OpenWaitlist opens a fresh waitlist for the restaurant. Any waitlist
// currently open is closed in the same transaction, keeping at most
// one open waitlist per restaurant.
func (db *DB) OpenWaitlist(ctx context.Context, restaurantID string) (*models.Waitlist, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("open waitlist: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
        UPDATE waitlists SET status = ? WHERE restaurant_id = ? AND status = ?`,
		models.WaitlistClosed, restaurantID, models.WaitlistOpen); err != nil {
		return nil, fmt.Errorf("close previous waitlist: %w", err)
	}

	w := &models.Waitlist{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Status:       models.WaitlistOpen,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO waitlists (id, restaurant_id, status, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.RestaurantID, w.Status, w.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert waitlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("open waitlist: %w", err)
	}
	return w, nil
}

// CloseWaitlist marks a waitlist closed.
func (db *DB) CloseWaitlist(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE waitlists SET status = ? WHERE id = ?`, models.WaitlistClosed, id)
	if err != nil {
		return fmt.Errorf("close waitlist: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
