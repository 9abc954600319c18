package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nicoespa/MesaYa/internal/models"
)

// CreateRestaurant inserts a restaurant. The slug must already be set
// (derived from the name by the caller).
func (db *DB) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO restaurants (id, slug, name, address, tz, plan, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Slug, r.Name, r.Address, r.TZ, r.Plan, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create restaurant: %w", err)
	}
	return nil
}

// GetRestaurant returns a restaurant by id.
func (db *DB) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, slug, name, COALESCE(address, ''), tz, plan, created_at
        FROM restaurants WHERE id = ?`, id)
	return scanRestaurant(row)
}

// GetRestaurantBySlug returns a restaurant by its public URL slug.
func (db *DB) GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, slug, name, COALESCE(address, ''), tz, plan, created_at
        FROM restaurants WHERE slug = ?`, slug)
	return scanRestaurant(row)
}

func scanRestaurant(row *sql.Row) (*models.Restaurant, error) {
	var r models.Restaurant
	err := row.Scan(&r.ID, &r.Slug, &r.Name, &r.Address, &r.TZ, &r.Plan, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan restaurant: %w", err)
	}
	return &r, nil
}

// HasRestaurantAccess reports whether the user is a member of the
// restaurant's staff.
func (db *DB) HasRestaurantAccess(ctx context.Context, userID, restaurantID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
        SELECT 1 FROM users_restaurants WHERE user_id = ? AND restaurant_id = ?`,
		userID, restaurantID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check restaurant access: %w", err)
	}
	return true, nil
}

// GrantRestaurantAccess adds a user to the restaurant's staff.
func (db *DB) GrantRestaurantAccess(ctx context.Context, userID, restaurantID, role string) error {
	_, err := db.ExecContext(ctx, `
        INSERT OR REPLACE INTO users_restaurants (user_id, restaurant_id, role) VALUES (?, ?, ?)`,
		userID, restaurantID, role)
	if err != nil {
		return fmt.Errorf("grant restaurant access: %w", err)
	}
	return nil
}
